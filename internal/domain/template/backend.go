package template

import "context"

// Backend defines the storage-agnostic contract for notification templates
// and their types. Implementations live in infra/store/.
//
// Lookups of missing records return (nil, nil) or false, never an error.
// An empty appID always addresses the organization scope, and a non-empty one
// never touches organization-scope records. Every call is bound to exactly
// one tenant.
type Backend interface {
	// AddType registers a template type for the channel and tenant.
	AddType(ctx context.Context, ref TypeRef) error

	// TypeExists reports whether the type is registered.
	TypeExists(ctx context.Context, ref TypeRef) (bool, error)

	// ListTypes returns the display names of every registered type.
	ListTypes(ctx context.Context, channel Channel, tenant string) ([]string, error)

	// DeleteType removes the type with all of its templates, in every locale
	// and every application scope.
	DeleteType(ctx context.Context, ref TypeRef) error

	// AddOrUpdate stores t in the given scope, replacing any previous content.
	// The owning type is created when missing.
	AddOrUpdate(ctx context.Context, t *Template, appID, tenant string) error

	// Exists reports whether the template is stored.
	Exists(ctx context.Context, ref TemplateRef) (bool, error)

	// Get returns the template, or nil when it is not stored.
	Get(ctx context.Context, ref TemplateRef) (*Template, error)

	// ListOfType returns every locale of a type stored in the given scope.
	ListOfType(ctx context.Context, ref TypeRef, appID string) ([]*Template, error)

	// ListAll returns every template of the channel stored in the given scope.
	ListAll(ctx context.Context, channel Channel, appID, tenant string) ([]*Template, error)

	// Delete removes a single template.
	Delete(ctx context.Context, ref TemplateRef) error

	// DeleteOfType removes every locale of a type within one scope.
	DeleteOfType(ctx context.Context, ref TypeRef, appID string) error
}

// DefaultSource is the read-only table of system default templates.
type DefaultSource interface {
	Backend

	// IsDefaultContent reports whether t carries exactly the content of the
	// system default with the same type, locale and channel.
	IsDefaultContent(t *Template) bool
}

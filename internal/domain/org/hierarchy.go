package org

import "context"

// Hierarchy is the organization traversal service consumed by the resolver.
// Implementations live in this package (static) and infra/org/ (Supabase).
type Hierarchy interface {
	// ResolveOrganizationID maps a tenant domain to its organization ID.
	ResolveOrganizationID(ctx context.Context, tenantDomain string) (string, error)

	// ResolveTenantDomain maps an organization ID back to its tenant domain.
	ResolveTenantDomain(ctx context.Context, orgID string) (string, error)

	// AncestorChain returns the organization IDs from orgID up to the root,
	// both inclusive, ordered leaf first.
	AncestorChain(ctx context.Context, orgID string) ([]string, error)
}

// TenantRegistry maps tenant domains to the numeric IDs used to scope
// relational storage.
type TenantRegistry interface {
	TenantID(ctx context.Context, tenantDomain string) (int, error)
}

// Organization is one node of the hierarchy.
type Organization struct {
	ID           string `json:"id" mapstructure:"id"`
	ParentID     string `json:"parent_id,omitempty" mapstructure:"parent_id"`
	TenantDomain string `json:"tenant_domain" mapstructure:"tenant_domain"`
	TenantID     int    `json:"tenant_id" mapstructure:"tenant_id"`
}

// Directory is a hierarchy that also assigns tenant IDs.
type Directory interface {
	Hierarchy
	TenantRegistry
}

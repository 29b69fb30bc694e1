package template

import (
	"fmt"
	"strings"

	"tmplhub/internal/common"
)

// Channel represents a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// ParseChannel converts a case-insensitive channel name into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToUpper(strings.TrimSpace(s))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	}
	return "", common.NewClientError(common.CodeInvalidChannel, fmt.Sprintf("unsupported notification channel: %q", s))
}

// Template is a stored or resolved notification template.
// Subject and Footer are empty for SMS templates.
type Template struct {
	DisplayName string  `json:"display_name"`
	Type        string  `json:"type"`
	Channel     Channel `json:"channel"`
	Locale      string  `json:"locale"`
	ContentType string  `json:"content_type,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	Body        string  `json:"body"`
	Footer      string  `json:"footer,omitempty"`
}

// Clone returns a copy of t, or nil when t is nil.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// TypeRef identifies a template type within a tenant and channel.
type TypeRef struct {
	Channel     Channel
	DisplayName string
	Tenant      string
}

// Key returns the normalized type identifier of the reference.
func (r TypeRef) Key() string {
	return NormalizeType(r.DisplayName)
}

func (r TypeRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Tenant, r.Channel, r.DisplayName)
}

// TemplateRef identifies a single template. An empty AppID addresses the
// organization scope.
type TemplateRef struct {
	TypeRef
	Locale string
	AppID  string
}

func (r TemplateRef) String() string {
	s := fmt.Sprintf("%s/%s", r.TypeRef, r.Locale)
	if r.AppID != "" {
		s += "@" + r.AppID
	}
	return s
}

// WithApp returns a copy of r addressing the given application scope.
func (r TemplateRef) WithApp(appID string) TemplateRef {
	r.AppID = appID
	return r
}

// WithTenant returns a copy of r addressing another tenant.
func (r TemplateRef) WithTenant(tenant string) TemplateRef {
	r.Tenant = tenant
	return r
}

// Ref builds the reference that addresses t in the given scope.
func (t *Template) Ref(appID, tenant string) TemplateRef {
	return TemplateRef{
		TypeRef: TypeRef{Channel: t.Channel, DisplayName: t.DisplayName, Tenant: tenant},
		Locale:  t.Locale,
		AppID:   appID,
	}
}

// mergeKey is the identity used when folding template lists from several scopes.
func mergeKey(t *Template) string {
	return NormalizeType(t.DisplayName) + "|" + strings.ToLower(t.Locale)
}

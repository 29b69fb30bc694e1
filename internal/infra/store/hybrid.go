package store

import (
	"context"

	"tmplhub/internal/domain/template"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

var _ template.Backend = (*Hybrid)(nil)

// Hybrid bridges a migration from a secondary store to a primary one. Writes
// go to the primary only; reads prefer the primary and fall back to the
// secondary. Records are never copied or removed from the secondary on
// write, so a write to a secondary-only key leaves two copies behind.
type Hybrid struct {
	primary   template.Backend
	secondary template.Backend
}

// NewHybrid composes the two backends.
func NewHybrid(primary, secondary template.Backend) *Hybrid {
	return &Hybrid{primary: primary, secondary: secondary}
}

func (h *Hybrid) backends() []template.Backend {
	return []template.Backend{h.primary, h.secondary}
}

func (h *Hybrid) AddType(ctx context.Context, ref template.TypeRef) error {
	return h.primary.AddType(ctx, ref)
}

func (h *Hybrid) TypeExists(ctx context.Context, ref template.TypeRef) (bool, error) {
	ok, err := h.primary.TypeExists(ctx, ref)
	if err != nil || ok {
		return ok, err
	}
	return h.secondary.TypeExists(ctx, ref)
}

func (h *Hybrid) ListTypes(ctx context.Context, channel template.Channel, tenant string) ([]string, error) {
	primary, err := h.primary.ListTypes(ctx, channel, tenant)
	if err != nil {
		return nil, err
	}
	secondary, err := h.secondary.ListTypes(ctx, channel, tenant)
	if err != nil {
		return nil, err
	}
	return union(primary, secondary, func(s string) string { return s }), nil
}

// DeleteType removes the type from every backend that holds it.
func (h *Hybrid) DeleteType(ctx context.Context, ref template.TypeRef) error {
	var result *multierror.Error
	for _, b := range h.backends() {
		ok, err := b.TypeExists(ctx, ref)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !ok {
			continue
		}
		if err := b.DeleteType(ctx, ref); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (h *Hybrid) AddOrUpdate(ctx context.Context, t *template.Template, appID, tenant string) error {
	return h.primary.AddOrUpdate(ctx, t, appID, tenant)
}

func (h *Hybrid) Exists(ctx context.Context, ref template.TemplateRef) (bool, error) {
	ok, err := h.primary.Exists(ctx, ref)
	if err != nil || ok {
		return ok, err
	}
	return h.secondary.Exists(ctx, ref)
}

func (h *Hybrid) Get(ctx context.Context, ref template.TemplateRef) (*template.Template, error) {
	t, err := h.primary.Get(ctx, ref)
	if err != nil || t != nil {
		return t, err
	}
	return h.secondary.Get(ctx, ref)
}

func (h *Hybrid) ListOfType(ctx context.Context, ref template.TypeRef, appID string) ([]*template.Template, error) {
	primary, err := h.primary.ListOfType(ctx, ref, appID)
	if err != nil {
		return nil, err
	}
	secondary, err := h.secondary.ListOfType(ctx, ref, appID)
	if err != nil {
		return nil, err
	}
	return unionTemplates(primary, secondary), nil
}

func (h *Hybrid) ListAll(ctx context.Context, channel template.Channel, appID, tenant string) ([]*template.Template, error) {
	primary, err := h.primary.ListAll(ctx, channel, appID, tenant)
	if err != nil {
		return nil, err
	}
	secondary, err := h.secondary.ListAll(ctx, channel, appID, tenant)
	if err != nil {
		return nil, err
	}
	return unionTemplates(primary, secondary), nil
}

// Delete removes the template from every backend that holds it.
func (h *Hybrid) Delete(ctx context.Context, ref template.TemplateRef) error {
	var result *multierror.Error
	for _, b := range h.backends() {
		ok, err := b.Exists(ctx, ref)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if !ok {
			continue
		}
		if err := b.Delete(ctx, ref); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (h *Hybrid) DeleteOfType(ctx context.Context, ref template.TypeRef, appID string) error {
	var result *multierror.Error
	for _, b := range h.backends() {
		if err := b.DeleteOfType(ctx, ref, appID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// union concatenates both lists in order, dropping entries already seen.
func union[E any, K comparable](primary, secondary []E, key func(E) K) []E {
	seen := mapset.NewThreadUnsafeSetWithSize[K](len(primary) + len(secondary))
	out := make([]E, 0, len(primary)+len(secondary))
	for _, list := range [][]E{primary, secondary} {
		for _, e := range list {
			if !seen.Add(key(e)) {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

// unionTemplates dedupes by value equality of the templates.
func unionTemplates(primary, secondary []*template.Template) []*template.Template {
	return union(primary, secondary, func(t *template.Template) template.Template { return *t })
}

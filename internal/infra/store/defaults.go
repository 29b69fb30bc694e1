package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tmplhub/internal/domain/template"
)

var _ template.DefaultSource = (*Defaults)(nil)

var errReadOnly = errors.New("system default templates are read-only")

// Defaults serves the system default templates loaded at startup. It is
// immutable after construction and ignores the tenant: every tenant sees the
// same defaults. Every mutation fails with a read_only StoreError.
type Defaults struct {
	// channel -> type key -> lower(locale)
	templates map[template.Channel]map[string]map[string]*template.Template
	// display names per channel, in load order
	types map[template.Channel][]string
}

// NewDefaults builds the table from already normalized and validated
// templates. A later entry for the same type and locale replaces an earlier one.
func NewDefaults(list []*template.Template) (*Defaults, error) {
	d := &Defaults{
		templates: make(map[template.Channel]map[string]map[string]*template.Template),
		types:     make(map[template.Channel][]string),
	}
	for _, t := range list {
		if t == nil {
			continue
		}
		if err := template.Validate(t); err != nil {
			return nil, fmt.Errorf("default template %s/%s: %w", t.DisplayName, t.Locale, err)
		}

		byType, ok := d.templates[t.Channel]
		if !ok {
			byType = make(map[string]map[string]*template.Template)
			d.templates[t.Channel] = byType
		}
		key := template.NormalizeType(t.DisplayName)
		byLocale, ok := byType[key]
		if !ok {
			byLocale = make(map[string]*template.Template)
			byType[key] = byLocale
			d.types[t.Channel] = append(d.types[t.Channel], t.DisplayName)
		}
		byLocale[strings.ToLower(t.Locale)] = t.Clone()
	}
	return d, nil
}

func (d *Defaults) lookup(channel template.Channel, typeKey string) map[string]*template.Template {
	return d.templates[channel][typeKey]
}

func (d *Defaults) AddType(_ context.Context, ref template.TypeRef) error {
	return template.NewStoreError("add template type", ref, template.KindReadOnly, errReadOnly)
}

func (d *Defaults) TypeExists(_ context.Context, ref template.TypeRef) (bool, error) {
	return d.lookup(ref.Channel, ref.Key()) != nil, nil
}

func (d *Defaults) ListTypes(_ context.Context, channel template.Channel, _ string) ([]string, error) {
	return append([]string(nil), d.types[channel]...), nil
}

func (d *Defaults) DeleteType(_ context.Context, ref template.TypeRef) error {
	return template.NewStoreError("delete template type", ref, template.KindReadOnly, errReadOnly)
}

func (d *Defaults) AddOrUpdate(_ context.Context, t *template.Template, appID, tenant string) error {
	return template.NewStoreError("add or update template", t.Ref(appID, tenant), template.KindReadOnly, errReadOnly)
}

// Exists reports whether a default exists. Defaults have no application
// scope, so an application-scoped reference never matches.
func (d *Defaults) Exists(_ context.Context, ref template.TemplateRef) (bool, error) {
	if ref.AppID != "" {
		return false, nil
	}
	_, ok := d.lookup(ref.Channel, ref.Key())[strings.ToLower(ref.Locale)]
	return ok, nil
}

func (d *Defaults) Get(_ context.Context, ref template.TemplateRef) (*template.Template, error) {
	if ref.AppID != "" {
		return nil, nil
	}
	return d.lookup(ref.Channel, ref.Key())[strings.ToLower(ref.Locale)].Clone(), nil
}

func (d *Defaults) ListOfType(_ context.Context, ref template.TypeRef, appID string) ([]*template.Template, error) {
	if appID != "" {
		return nil, nil
	}
	return d.collect(ref.Channel, ref.Key()), nil
}

func (d *Defaults) ListAll(_ context.Context, channel template.Channel, appID, _ string) ([]*template.Template, error) {
	if appID != "" {
		return nil, nil
	}
	var out []*template.Template
	for _, name := range d.types[channel] {
		out = append(out, d.collect(channel, template.NormalizeType(name))...)
	}
	return out, nil
}

func (d *Defaults) Delete(_ context.Context, ref template.TemplateRef) error {
	return template.NewStoreError("delete template", ref, template.KindReadOnly, errReadOnly)
}

func (d *Defaults) DeleteOfType(_ context.Context, ref template.TypeRef, _ string) error {
	return template.NewStoreError("delete templates of type", ref, template.KindReadOnly, errReadOnly)
}

// IsDefaultContent reports whether t carries exactly the content of the
// default with the same type, locale and channel.
func (d *Defaults) IsDefaultContent(t *template.Template) bool {
	if t == nil {
		return false
	}
	def := d.lookup(t.Channel, template.NormalizeType(t.DisplayName))[strings.ToLower(t.Locale)]
	return def != nil && template.ContentEqual(def, t)
}

func (d *Defaults) collect(channel template.Channel, typeKey string) []*template.Template {
	byLocale := d.lookup(channel, typeKey)
	if len(byLocale) == 0 {
		return nil
	}
	locales := make([]string, 0, len(byLocale))
	for l := range byLocale {
		locales = append(locales, l)
	}
	sort.Strings(locales)

	out := make([]*template.Template, 0, len(locales))
	for _, l := range locales {
		out = append(out, byLocale[l].Clone())
	}
	return out
}

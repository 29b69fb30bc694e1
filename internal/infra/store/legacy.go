package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/registry"
)

const (
	applicationsDir = "applications"

	propDisplayName = "display_name"
	propLocale      = "locale"
	propContentType = "content_type"
)

var _ template.Backend = (*Legacy)(nil)

// Legacy stores templates in the hierarchical registry tree:
//
//	/tenants/{tenant}/notification/{channel}/{type}                            type collection
//	/tenants/{tenant}/notification/{channel}/{type}/{locale}                   organization template
//	/tenants/{tenant}/notification/{channel}/{type}/applications/{app}/{locale} application template
//
// Leaf content is a JSON array: [subject, body, footer] for EMAIL and [body]
// for SMS.
type Legacy struct {
	tree registry.Tree
}

// NewLegacy creates a backend over the registry tree.
func NewLegacy(tree registry.Tree) *Legacy {
	return &Legacy{tree: tree}
}

func channelPath(channel template.Channel, tenant string) string {
	return registry.Join("tenants", tenant, "notification", strings.ToLower(string(channel)))
}

func validSegment(s string) bool {
	return strings.Trim(s, ".") != "" && !strings.Contains(s, "/")
}

// checkType rejects refs whose type key would escape its channel directory.
func checkType(op string, ref template.TypeRef) error {
	if key := ref.Key(); !template.ValidTypeKey(key) || !validSegment(key) {
		return template.NewStoreError(op, ref, template.KindInvalidKey, fmt.Errorf("type key %q is not a path segment", key))
	}
	return nil
}

func checkTemplate(op string, ref template.TemplateRef) error {
	if err := checkType(op, ref.TypeRef); err != nil {
		return err
	}
	if !validSegment(ref.Locale) || (ref.AppID != "" && !validSegment(ref.AppID)) {
		return template.NewStoreError(op, ref, template.KindInvalidKey, fmt.Errorf("locale %q or application %q is not a path segment", ref.Locale, ref.AppID))
	}
	return nil
}

func checkScope(op string, ref template.TypeRef, appID string) error {
	if err := checkType(op, ref); err != nil {
		return err
	}
	if appID != "" && !validSegment(appID) {
		return template.NewStoreError(op, ref, template.KindInvalidKey, fmt.Errorf("application %q is not a path segment", appID))
	}
	return nil
}

func typePath(ref template.TypeRef) string {
	return path.Join(channelPath(ref.Channel, ref.Tenant), ref.Key())
}

func scopePath(ref template.TypeRef, appID string) string {
	if appID == "" {
		return typePath(ref)
	}
	return path.Join(typePath(ref), applicationsDir, appID)
}

func leafPath(ref template.TemplateRef) string {
	return path.Join(scopePath(ref.TypeRef, ref.AppID), ref.Locale)
}

func (l *Legacy) AddType(ctx context.Context, ref template.TypeRef) error {
	const op = "add template type"
	if err := checkType(op, ref); err != nil {
		return err
	}
	p := typePath(ref)
	exists, err := l.tree.Exists(ctx, p)
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	if exists {
		return template.NewStoreError(op, ref, template.KindDuplicate, fmt.Errorf("collection %s already exists", p))
	}
	return l.putType(ctx, op, ref)
}

func (l *Legacy) putType(ctx context.Context, op string, ref template.TypeRef) error {
	err := l.tree.Put(ctx, &registry.Node{
		Path:       typePath(ref),
		Collection: true,
		Properties: map[string]string{propDisplayName: ref.DisplayName},
	})
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return nil
}

func (l *Legacy) TypeExists(ctx context.Context, ref template.TypeRef) (bool, error) {
	const op = "check template type"
	if err := checkType(op, ref); err != nil {
		return false, err
	}
	ok, err := l.tree.Exists(ctx, typePath(ref))
	if err != nil {
		return false, template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return ok, nil
}

func (l *Legacy) ListTypes(ctx context.Context, channel template.Channel, tenant string) ([]string, error) {
	const op = "list template types"
	key := template.ChannelKey{Channel: channel, Tenant: tenant}

	children, err := l.tree.Children(ctx, channelPath(channel, tenant))
	if err != nil {
		return nil, template.NewStoreError(op, key, template.KindFailure, err)
	}

	names := make([]string, 0, len(children))
	for _, child := range children {
		n, err := l.tree.Get(ctx, child)
		if err != nil {
			return nil, template.NewStoreError(op, key, template.KindFailure, err)
		}
		if n == nil || !n.Collection {
			continue
		}
		name := n.Property(propDisplayName)
		if name == "" {
			name = path.Base(child)
		}
		names = append(names, name)
	}
	return names, nil
}

func (l *Legacy) DeleteType(ctx context.Context, ref template.TypeRef) error {
	const op = "delete template type"
	if err := checkType(op, ref); err != nil {
		return err
	}
	if err := l.tree.Delete(ctx, typePath(ref)); err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return nil
}

func (l *Legacy) AddOrUpdate(ctx context.Context, t *template.Template, appID, tenant string) error {
	const op = "add or update template"
	ref := t.Ref(appID, tenant)
	if err := checkTemplate(op, ref); err != nil {
		return err
	}

	exists, err := l.tree.Exists(ctx, typePath(ref.TypeRef))
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	if !exists {
		if err := l.putType(ctx, op, ref.TypeRef); err != nil {
			return err
		}
	}

	content, err := encodeContent(t)
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	err = l.tree.Put(ctx, &registry.Node{
		Path: leafPath(ref),
		Properties: map[string]string{
			propDisplayName: t.DisplayName,
			propLocale:      t.Locale,
			propContentType: t.ContentType,
		},
		Content: content,
	})
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return nil
}

func (l *Legacy) Exists(ctx context.Context, ref template.TemplateRef) (bool, error) {
	const op = "check template"
	if err := checkTemplate(op, ref); err != nil {
		return false, err
	}
	ok, err := l.tree.Exists(ctx, leafPath(ref))
	if err != nil {
		return false, template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return ok, nil
}

func (l *Legacy) Get(ctx context.Context, ref template.TemplateRef) (*template.Template, error) {
	const op = "get template"
	if err := checkTemplate(op, ref); err != nil {
		return nil, err
	}
	n, err := l.tree.Get(ctx, leafPath(ref))
	if err != nil {
		return nil, template.NewStoreError(op, ref, template.KindFailure, err)
	}
	if n == nil || n.Collection {
		return nil, nil
	}
	return decodeNode(op, ref, ref.Channel, n)
}

func (l *Legacy) ListOfType(ctx context.Context, ref template.TypeRef, appID string) ([]*template.Template, error) {
	const op = "list templates of type"
	if err := checkScope(op, ref, appID); err != nil {
		return nil, err
	}
	children, err := l.tree.Children(ctx, scopePath(ref, appID))
	if err != nil {
		return nil, template.NewStoreError(op, ref, template.KindFailure, err)
	}

	var out []*template.Template
	for _, child := range children {
		if path.Base(child) == applicationsDir {
			continue
		}
		n, err := l.tree.Get(ctx, child)
		if err != nil {
			return nil, template.NewStoreError(op, ref, template.KindFailure, err)
		}
		if n == nil || n.Collection {
			continue
		}
		t, err := decodeNode(op, ref, ref.Channel, n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (l *Legacy) ListAll(ctx context.Context, channel template.Channel, appID, tenant string) ([]*template.Template, error) {
	key := template.ChannelKey{Channel: channel, AppID: appID, Tenant: tenant}
	types, err := l.tree.Children(ctx, channelPath(channel, tenant))
	if err != nil {
		return nil, template.NewStoreError("list templates", key, template.KindFailure, err)
	}

	var out []*template.Template
	for _, p := range types {
		ref := template.TypeRef{Channel: channel, DisplayName: path.Base(p), Tenant: tenant}
		ts, err := l.ListOfType(ctx, ref, appID)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

func (l *Legacy) Delete(ctx context.Context, ref template.TemplateRef) error {
	const op = "delete template"
	if err := checkTemplate(op, ref); err != nil {
		return err
	}
	if err := l.tree.Delete(ctx, leafPath(ref)); err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	return nil
}

// DeleteOfType removes the locales of one scope. Application overrides
// survive an organization-scope delete.
func (l *Legacy) DeleteOfType(ctx context.Context, ref template.TypeRef, appID string) error {
	const op = "delete templates of type"
	if err := checkScope(op, ref, appID); err != nil {
		return err
	}
	if appID != "" {
		if err := l.tree.Delete(ctx, scopePath(ref, appID)); err != nil {
			return template.NewStoreError(op, ref, template.KindFailure, err)
		}
		return nil
	}

	children, err := l.tree.Children(ctx, typePath(ref))
	if err != nil {
		return template.NewStoreError(op, ref, template.KindFailure, err)
	}
	for _, child := range children {
		if path.Base(child) == applicationsDir {
			continue
		}
		if err := l.tree.Delete(ctx, child); err != nil {
			return template.NewStoreError(op, ref, template.KindFailure, err)
		}
	}
	return nil
}

// contentArity is the number of serialized content fields per channel.
func contentArity(channel template.Channel) int {
	if channel == template.ChannelSMS {
		return 1
	}
	return 3
}

func encodeContent(t *template.Template) ([]byte, error) {
	fields := []string{t.Body}
	if t.Channel != template.ChannelSMS {
		fields = []string{t.Subject, t.Body, t.Footer}
	}
	return json.Marshal(fields)
}

func decodeNode(op string, key fmt.Stringer, channel template.Channel, n *registry.Node) (*template.Template, error) {
	var fields []string
	if err := json.Unmarshal(n.Content, &fields); err != nil {
		return nil, template.NewStoreError(op, key, template.KindCorrupt, fmt.Errorf("decoding %s: %w", n.Path, err))
	}
	if want := contentArity(channel); len(fields) != want {
		return nil, template.NewStoreError(op, key, template.KindArity,
			fmt.Errorf("%s holds %d content fields, want %d", n.Path, len(fields), want))
	}

	displayName := n.Property(propDisplayName)
	locale := n.Property(propLocale)
	if locale == "" {
		locale = path.Base(n.Path)
	}
	t := &template.Template{
		DisplayName: displayName,
		Type:        template.NormalizeType(displayName),
		Channel:     channel,
		Locale:      locale,
		ContentType: n.Property(propContentType),
	}
	if channel == template.ChannelSMS {
		t.Body = fields[0]
	} else {
		t.Subject, t.Body, t.Footer = fields[0], fields[1], fields[2]
	}
	return t, nil
}

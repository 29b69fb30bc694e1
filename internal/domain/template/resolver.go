package template

import (
	"context"
	"log/slog"
	"time"

	"tmplhub/internal/domain/org"
	"tmplhub/internal/metrics"
)

var _ Backend = (*Resolver)(nil)

// level is one organization of a hierarchy walk and the tenant that owns it.
type level struct {
	OrgID  string
	Tenant string
}

// hit is a resolved template together with the scope that produced it.
type hit struct {
	t      *Template
	source string
}

// ResolverConfig tunes the hierarchy walk.
type ResolverConfig struct {
	// Parallelism bounds the concurrent organization reads of list
	// operations. Zero or one walks sequentially.
	Parallelism int
}

// Resolver resolves templates through the organization hierarchy: the
// requesting organization first (application scope before organization
// scope), then each ancestor up to the root, and finally the system defaults.
// Writes always address the requesting tenant only.
//
// All fields are set by NewResolver and never modified afterwards.
type Resolver struct {
	defaults  DefaultSource
	backend   Backend
	hierarchy org.Hierarchy
	cfg       ResolverConfig
}

// NewResolver creates a resolver over the backend chain.
func NewResolver(defaults DefaultSource, backend Backend, hierarchy org.Hierarchy, cfg ResolverConfig) *Resolver {
	return &Resolver{
		defaults:  defaults,
		backend:   backend,
		hierarchy: hierarchy,
		cfg:       cfg,
	}
}

// levels resolves the tenant's organization and its ancestor chain.
func (r *Resolver) levels(ctx context.Context, tenant string) ([]level, error) {
	key := TenantKey(tenant)
	orgID, err := r.hierarchy.ResolveOrganizationID(ctx, tenant)
	if err != nil {
		return nil, NewStoreError("resolve organization", key, KindOrgResolution, err)
	}
	chain, err := r.hierarchy.AncestorChain(ctx, orgID)
	if err != nil {
		return nil, NewStoreError("resolve ancestors", key, KindOrgResolution, err)
	}
	if len(chain) == 0 {
		chain = []string{orgID}
	}

	levels := make([]level, 0, len(chain))
	for i, id := range chain {
		lvl := level{OrgID: id, Tenant: tenant}
		if i > 0 {
			lvl.Tenant, err = r.hierarchy.ResolveTenantDomain(ctx, id)
			if err != nil {
				return nil, NewStoreError("resolve tenant of "+id, key, KindOrgResolution, err)
			}
		}
		levels = append(levels, lvl)
	}
	metrics.HierarchyDepth.Observe(float64(len(levels)))
	return levels, nil
}

// AddType registers the type for the requesting tenant.
func (r *Resolver) AddType(ctx context.Context, ref TypeRef) error {
	return r.backend.AddType(ctx, ref)
}

// TypeExists reports whether the type is a system default or is registered
// anywhere in the tenant's hierarchy.
func (r *Resolver) TypeExists(ctx context.Context, ref TypeRef) (bool, error) {
	if ok, err := r.defaults.TypeExists(ctx, ref); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	levels, err := r.levels(ctx, ref.Tenant)
	if err != nil {
		return false, err
	}
	return fold(ctx, levels, firstTrue(), func(ctx context.Context, _ int, lvl level) (bool, error) {
		scoped := ref
		scoped.Tenant = lvl.Tenant
		return r.backend.TypeExists(ctx, scoped)
	})
}

// ListTypes merges the type names of every organization in the hierarchy,
// nearest first, followed by the system defaults not already present.
func (r *Resolver) ListTypes(ctx context.Context, channel Channel, tenant string) ([]string, error) {
	levels, err := r.levels(ctx, tenant)
	if err != nil {
		return nil, err
	}
	strategy := MergeAll[string]{Key: NormalizeType}
	names, err := walkAll(ctx, r.cfg.Parallelism, levels, strategy, func(ctx context.Context, _ int, lvl level) ([]string, error) {
		return r.backend.ListTypes(ctx, channel, lvl.Tenant)
	})
	if err != nil {
		return nil, err
	}

	defaults, err := r.defaults.ListTypes(ctx, channel, tenant)
	if err != nil {
		return nil, err
	}
	return mergeByKey(names, defaults, NormalizeType), nil
}

// DeleteType removes the type stored by the requesting tenant. System
// defaults and ancestors are untouched, so the type may stay resolvable.
func (r *Resolver) DeleteType(ctx context.Context, ref TypeRef) error {
	return r.backend.DeleteType(ctx, ref)
}

// AddOrUpdate stores t for the requesting tenant. Content identical to a
// system default is never stored: a missing override stays missing and an
// existing override is removed so resolution falls back to the default.
func (r *Resolver) AddOrUpdate(ctx context.Context, t *Template, appID, tenant string) error {
	if !r.defaults.IsDefaultContent(t) {
		return r.backend.AddOrUpdate(ctx, t, appID, tenant)
	}

	ref := t.Ref(appID, tenant)
	exists, err := r.backend.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		metrics.DefaultWritesSuppressed.WithLabelValues(string(t.Channel), "skipped").Inc()
		slog.Info("template matches system default, skipping write",
			"tenant", tenant,
			"channel", t.Channel,
			"type", t.Type,
			"locale", t.Locale,
			"app", appID,
		)
		return nil
	}

	if err := r.backend.Delete(ctx, ref); err != nil {
		return err
	}
	metrics.DefaultWritesSuppressed.WithLabelValues(string(t.Channel), "reset").Inc()
	slog.Info("template reset to system default",
		"tenant", tenant,
		"channel", t.Channel,
		"type", t.Type,
		"locale", t.Locale,
		"app", appID,
	)
	return nil
}

// Exists reports whether the template resolves for the tenant: as a system
// default, or stored at any level of the hierarchy.
func (r *Resolver) Exists(ctx context.Context, ref TemplateRef) (bool, error) {
	if ok, err := r.defaults.Exists(ctx, ref.WithApp("")); err != nil {
		return false, err
	} else if ok {
		return true, nil
	}

	levels, err := r.levels(ctx, ref.Tenant)
	if err != nil {
		return false, err
	}
	return fold(ctx, levels, firstTrue(), func(ctx context.Context, _ int, lvl level) (bool, error) {
		scoped := ref.WithTenant(lvl.Tenant)
		if scoped.AppID != "" {
			ok, err := r.backend.Exists(ctx, scoped)
			if err != nil || ok {
				return ok, err
			}
		}
		return r.backend.Exists(ctx, scoped.WithApp(""))
	})
}

// Get resolves the most specific template, falling back to the system
// default. It returns nil when nothing matches.
func (r *Resolver) Get(ctx context.Context, ref TemplateRef) (*Template, error) {
	start := time.Now()
	levels, err := r.levels(ctx, ref.Tenant)
	if err != nil {
		return nil, err
	}

	strategy := FirstFound[hit]{IsEmpty: func(h hit) bool { return h.t == nil }}
	found, err := fold(ctx, levels, strategy, func(ctx context.Context, i int, lvl level) (hit, error) {
		return r.getAtLevel(ctx, ref.WithTenant(lvl.Tenant), i)
	})
	if err != nil {
		return nil, err
	}

	if found.t == nil {
		found.t, err = r.defaults.Get(ctx, ref.WithApp(""))
		if err != nil {
			return nil, err
		}
		found.source = metrics.SourceDefault
		if found.t == nil {
			found.source = metrics.SourceMiss
		}
	}

	metrics.TemplateResolutions.WithLabelValues(string(ref.Channel), found.source).Inc()
	slog.Debug("template resolved",
		"tenant", ref.Tenant,
		"channel", ref.Channel,
		"type", ref.Key(),
		"locale", ref.Locale,
		"app", ref.AppID,
		"source", found.source,
		"duration", time.Since(start),
	)
	return found.t, nil
}

// getAtLevel queries one organization: application scope first, then
// organization scope.
func (r *Resolver) getAtLevel(ctx context.Context, ref TemplateRef, depth int) (hit, error) {
	if ref.AppID != "" {
		t, err := r.backend.Get(ctx, ref)
		if err != nil {
			return hit{}, err
		}
		if t != nil {
			source := metrics.SourceApp
			if depth > 0 {
				source = metrics.SourceAncestor
			}
			return hit{t: t, source: source}, nil
		}
	}

	t, err := r.backend.Get(ctx, ref.WithApp(""))
	if err != nil || t == nil {
		return hit{}, err
	}
	source := metrics.SourceOrg
	if depth > 0 {
		source = metrics.SourceAncestor
	}
	return hit{t: t, source: source}, nil
}

// ListOfType merges every locale of the type across the hierarchy and the
// system defaults, nearest scope winning per locale.
func (r *Resolver) ListOfType(ctx context.Context, ref TypeRef, appID string) ([]*Template, error) {
	levels, err := r.levels(ctx, ref.Tenant)
	if err != nil {
		return nil, err
	}
	templates, err := r.walkTemplates(ctx, levels, appID, func(ctx context.Context, tenant, appID string) ([]*Template, error) {
		scoped := ref
		scoped.Tenant = tenant
		return r.backend.ListOfType(ctx, scoped, appID)
	})
	if err != nil {
		return nil, err
	}

	defaults, err := r.defaults.ListOfType(ctx, ref, "")
	if err != nil {
		return nil, err
	}
	return mergeByKey(templates, defaults, mergeKey), nil
}

// ListAll merges every template of the channel across the hierarchy and the
// system defaults.
func (r *Resolver) ListAll(ctx context.Context, channel Channel, appID, tenant string) ([]*Template, error) {
	levels, err := r.levels(ctx, tenant)
	if err != nil {
		return nil, err
	}
	templates, err := r.walkTemplates(ctx, levels, appID, func(ctx context.Context, tenant, appID string) ([]*Template, error) {
		return r.backend.ListAll(ctx, channel, appID, tenant)
	})
	if err != nil {
		return nil, err
	}

	defaults, err := r.defaults.ListAll(ctx, channel, "", tenant)
	if err != nil {
		return nil, err
	}
	return mergeByKey(templates, defaults, mergeKey), nil
}

// Delete removes the template stored by the requesting tenant.
func (r *Resolver) Delete(ctx context.Context, ref TemplateRef) error {
	return r.backend.Delete(ctx, ref)
}

// DeleteOfType removes the requesting tenant's templates of the type in one scope.
func (r *Resolver) DeleteOfType(ctx context.Context, ref TypeRef, appID string) error {
	return r.backend.DeleteOfType(ctx, ref, appID)
}

// walkTemplates merges per-level template lists. Within a level the
// application-scoped list wins over the organization-scoped one.
func (r *Resolver) walkTemplates(ctx context.Context, levels []level, appID string, list func(ctx context.Context, tenant, appID string) ([]*Template, error)) ([]*Template, error) {
	strategy := MergeAll[*Template]{Key: mergeKey}
	return walkAll(ctx, r.cfg.Parallelism, levels, strategy, func(ctx context.Context, _ int, lvl level) ([]*Template, error) {
		var scoped []*Template
		if appID != "" {
			var err error
			scoped, err = list(ctx, lvl.Tenant, appID)
			if err != nil {
				return nil, err
			}
		}
		orgScoped, err := list(ctx, lvl.Tenant, "")
		if err != nil {
			return nil, err
		}
		return mergeByKey(scoped, orgScoped, mergeKey), nil
	})
}

// walkAll folds a Merge-All walk, fanning out when parallelism allows.
func walkAll[E any](ctx context.Context, parallelism int, levels []level, s MergeAll[E], query func(context.Context, int, level) ([]E, error)) ([]E, error) {
	if parallelism > 1 && len(levels) > 1 {
		return foldParallel(ctx, levels, s, parallelism, query)
	}
	return fold(ctx, levels, s, query)
}

func firstTrue() FirstFound[bool] {
	return FirstFound[bool]{IsEmpty: func(ok bool) bool { return !ok }}
}

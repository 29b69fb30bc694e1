package store

import (
	"context"
	"sync"
	"time"

	"tmplhub/internal/domain/template"

	"github.com/jellydator/ttlcache/v3"
)

var _ template.Backend = (*Cached)(nil)

type cacheKey struct {
	Op      string
	Tenant  string
	Channel template.Channel
	Type    string
	Locale  string
	AppID   string
}

// Cached decorates a backend with a read cache. Every mutation invalidates
// all cached entries of the affected tenant before returning.
type Cached struct {
	next  template.Backend
	cache *ttlcache.Cache[cacheKey, any]

	mu sync.Mutex
	// generation per tenant, bumped on every invalidation so that a read
	// racing a write never stores what it loaded before the write.
	gens map[string]uint64
}

// NewCached wraps next. Entries expire after ttl and at most capacity
// entries are kept (zero means unbounded).
func NewCached(next template.Backend, ttl time.Duration, capacity uint64) *Cached {
	opts := []ttlcache.Option[cacheKey, any]{
		ttlcache.WithTTL[cacheKey, any](ttl),
		ttlcache.WithDisableTouchOnHit[cacheKey, any](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[cacheKey, any](capacity))
	}
	c := &Cached{
		next:  next,
		cache: ttlcache.New(opts...),
		gens:  make(map[string]uint64),
	}
	go c.cache.Start()
	return c
}

// Close stops the expiry loop.
func (c *Cached) Close() {
	c.cache.Stop()
}

func (c *Cached) generation(tenant string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[tenant]
}

// invalidate drops every entry of the tenant.
func (c *Cached) invalidate(tenant string) {
	c.mu.Lock()
	c.gens[tenant]++
	c.mu.Unlock()

	for _, k := range c.cache.Keys() {
		if k.Tenant == tenant {
			c.cache.Delete(k)
		}
	}
}

// load returns the cached value for key or calls fn and caches its result.
// Errors are never cached.
func load[T any](c *Cached, key cacheKey, fn func() (T, error)) (T, error) {
	if item := c.cache.Get(key); item != nil {
		if v, ok := item.Value().(T); ok {
			return v, nil
		}
	}

	gen := c.generation(key.Tenant)
	v, err := fn()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	if c.gens[key.Tenant] == gen {
		c.cache.Set(key, v, ttlcache.DefaultTTL)
	}
	c.mu.Unlock()
	return v, nil
}

func cloneAll(list []*template.Template) []*template.Template {
	if list == nil {
		return nil
	}
	out := make([]*template.Template, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out
}

func (c *Cached) AddType(ctx context.Context, ref template.TypeRef) error {
	defer c.invalidate(ref.Tenant)
	return c.next.AddType(ctx, ref)
}

func (c *Cached) TypeExists(ctx context.Context, ref template.TypeRef) (bool, error) {
	key := cacheKey{Op: "type_exists", Tenant: ref.Tenant, Channel: ref.Channel, Type: ref.Key()}
	return load(c, key, func() (bool, error) {
		return c.next.TypeExists(ctx, ref)
	})
}

func (c *Cached) ListTypes(ctx context.Context, channel template.Channel, tenant string) ([]string, error) {
	key := cacheKey{Op: "list_types", Tenant: tenant, Channel: channel}
	names, err := load(c, key, func() ([]string, error) {
		return c.next.ListTypes(ctx, channel, tenant)
	})
	if err != nil {
		return nil, err
	}
	return append([]string(nil), names...), nil
}

func (c *Cached) DeleteType(ctx context.Context, ref template.TypeRef) error {
	defer c.invalidate(ref.Tenant)
	return c.next.DeleteType(ctx, ref)
}

func (c *Cached) AddOrUpdate(ctx context.Context, t *template.Template, appID, tenant string) error {
	defer c.invalidate(tenant)
	return c.next.AddOrUpdate(ctx, t, appID, tenant)
}

func (c *Cached) Exists(ctx context.Context, ref template.TemplateRef) (bool, error) {
	key := cacheKey{Op: "exists", Tenant: ref.Tenant, Channel: ref.Channel, Type: ref.Key(), Locale: ref.Locale, AppID: ref.AppID}
	return load(c, key, func() (bool, error) {
		return c.next.Exists(ctx, ref)
	})
}

func (c *Cached) Get(ctx context.Context, ref template.TemplateRef) (*template.Template, error) {
	key := cacheKey{Op: "get", Tenant: ref.Tenant, Channel: ref.Channel, Type: ref.Key(), Locale: ref.Locale, AppID: ref.AppID}
	t, err := load(c, key, func() (*template.Template, error) {
		t, err := c.next.Get(ctx, ref)
		return t.Clone(), err
	})
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

func (c *Cached) ListOfType(ctx context.Context, ref template.TypeRef, appID string) ([]*template.Template, error) {
	key := cacheKey{Op: "list_of_type", Tenant: ref.Tenant, Channel: ref.Channel, Type: ref.Key(), AppID: appID}
	list, err := load(c, key, func() ([]*template.Template, error) {
		list, err := c.next.ListOfType(ctx, ref, appID)
		return cloneAll(list), err
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(list), nil
}

func (c *Cached) ListAll(ctx context.Context, channel template.Channel, appID, tenant string) ([]*template.Template, error) {
	key := cacheKey{Op: "list_all", Tenant: tenant, Channel: channel, AppID: appID}
	list, err := load(c, key, func() ([]*template.Template, error) {
		list, err := c.next.ListAll(ctx, channel, appID, tenant)
		return cloneAll(list), err
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(list), nil
}

func (c *Cached) Delete(ctx context.Context, ref template.TemplateRef) error {
	defer c.invalidate(ref.Tenant)
	return c.next.Delete(ctx, ref)
}

func (c *Cached) DeleteOfType(ctx context.Context, ref template.TypeRef, appID string) error {
	defer c.invalidate(ref.Tenant)
	return c.next.DeleteOfType(ctx, ref, appID)
}

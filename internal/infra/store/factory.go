package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tmplhub/internal/domain/org"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/database"
	"tmplhub/internal/infra/registry"
)

// Kind selects the persistence backend.
type Kind int

const (
	KindDatabase Kind = iota
	KindRegistry
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindRegistry:
		return "registry"
	case KindHybrid:
		return "hybrid"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a configured backend name. An empty name selects the
// database backend.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "database":
		return KindDatabase, nil
	case "registry":
		return KindRegistry, nil
	case "hybrid":
		return KindHybrid, nil
	}
	return 0, fmt.Errorf("unknown template store %q (want database, registry or hybrid)", s)
}

// Options carries what the backends need. Only the dependencies of the
// selected kind must be set.
type Options struct {
	Kind    Kind
	DB      *database.DB
	Tenants org.TenantRegistry
	Tree    registry.Tree

	// CacheTTL enables the read cache when positive.
	CacheTTL      time.Duration
	CacheCapacity uint64
}

// New builds the backend selected by opts.Kind.
func New(opts Options) (template.Backend, error) {
	var b template.Backend
	switch opts.Kind {
	case KindDatabase:
		rel, err := newRelational(opts)
		if err != nil {
			return nil, err
		}
		b = rel
	case KindRegistry:
		if opts.Tree == nil {
			return nil, errors.New("registry store requires a registry tree")
		}
		b = NewLegacy(opts.Tree)
	case KindHybrid:
		rel, err := newRelational(opts)
		if err != nil {
			return nil, err
		}
		if opts.Tree == nil {
			return nil, errors.New("hybrid store requires a registry tree")
		}
		b = NewHybrid(rel, NewLegacy(opts.Tree))
	default:
		return nil, fmt.Errorf("unsupported template store %s", opts.Kind)
	}

	if opts.CacheTTL > 0 {
		b = NewCached(b, opts.CacheTTL, opts.CacheCapacity)
	}
	return b, nil
}

func newRelational(opts Options) (*Relational, error) {
	if opts.DB == nil {
		return nil, errors.New("database store requires a database")
	}
	if opts.Tenants == nil {
		return nil, errors.New("database store requires a tenant registry")
	}
	return NewRelational(opts.DB, opts.Tenants), nil
}

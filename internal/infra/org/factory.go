package org

import (
	"fmt"
	"strings"
	"time"

	"tmplhub/internal/domain/org"
)

// Options selects and configures the organization source.
type Options struct {
	// Source is static or supabase. Empty selects static.
	Source        string
	Organizations []org.Organization

	SupabaseURL string
	SupabaseKey string
	CacheTTL    time.Duration
}

// New builds the configured organization directory.
func New(opts Options) (org.Directory, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Source)) {
	case "", "static":
		s, err := org.NewStatic(opts.Organizations)
		if err != nil {
			return nil, fmt.Errorf("building static hierarchy: %w", err)
		}
		return s, nil
	case "supabase":
		h, err := NewSupabaseHierarchy(opts.SupabaseURL, opts.SupabaseKey, opts.CacheTTL)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
	return nil, fmt.Errorf("unknown hierarchy source %q (want static or supabase)", opts.Source)
}

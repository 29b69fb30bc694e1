package org

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tmplhub/internal/domain/org"

	"github.com/jellydator/ttlcache/v3"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	tableName  = "organizations"
	columns    = "id,parent_id,tenant_domain,tenant_id"
	maxDepth   = 64
	defaultTTL = 5 * time.Minute
)

var (
	_ org.Hierarchy      = (*SupabaseHierarchy)(nil)
	_ org.TenantRegistry = (*SupabaseHierarchy)(nil)
)

// SupabaseHierarchy reads the organization tree from a Supabase table.
// Rows are cached by id and by tenant domain for a short TTL.
type SupabaseHierarchy struct {
	client   *supa.Client
	byID     *ttlcache.Cache[string, org.Organization]
	byTenant *ttlcache.Cache[string, org.Organization]
}

// NewSupabaseHierarchy creates a Supabase-backed hierarchy. A zero ttl uses
// the default of five minutes.
func NewSupabaseHierarchy(supabaseURL, serviceKey string, ttl time.Duration) (*SupabaseHierarchy, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SupabaseHierarchy{
		client:   client,
		byID:     ttlcache.New(ttlcache.WithTTL[string, org.Organization](ttl)),
		byTenant: ttlcache.New(ttlcache.WithTTL[string, org.Organization](ttl)),
	}, nil
}

// organizationRow is the PostgREST representation of an organization.
type organizationRow struct {
	ID           string  `json:"id"`
	ParentID     *string `json:"parent_id"`
	TenantDomain string  `json:"tenant_domain"`
	TenantID     int     `json:"tenant_id"`
}

func (r organizationRow) toOrganization() org.Organization {
	o := org.Organization{ID: r.ID, TenantDomain: r.TenantDomain, TenantID: r.TenantID}
	if r.ParentID != nil {
		o.ParentID = *r.ParentID
	}
	return o
}

// fetch returns the organization whose column equals value.
func (s *SupabaseHierarchy) fetch(column, value string) (org.Organization, error) {
	data, _, err := s.client.From(tableName).
		Select(columns, "", false).
		Eq(column, value).
		Order("id", &postgrest.OrderOpts{Ascending: true}).
		Limit(1, "").
		Execute()
	if err != nil {
		return org.Organization{}, fmt.Errorf("fetching organization by %s: %w", column, err)
	}

	var rows []organizationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return org.Organization{}, fmt.Errorf("parsing organization: %w", err)
	}
	if len(rows) == 0 {
		return org.Organization{}, fmt.Errorf("organization with %s %q not found", column, value)
	}

	o := rows[0].toOrganization()
	s.byID.Set(o.ID, o, ttlcache.DefaultTTL)
	s.byTenant.Set(o.TenantDomain, o, ttlcache.DefaultTTL)
	return o, nil
}

func (s *SupabaseHierarchy) byOrgID(id string) (org.Organization, error) {
	if item := s.byID.Get(id); item != nil {
		return item.Value(), nil
	}
	return s.fetch("id", id)
}

func (s *SupabaseHierarchy) byTenantDomain(domain string) (org.Organization, error) {
	if item := s.byTenant.Get(domain); item != nil {
		return item.Value(), nil
	}
	return s.fetch("tenant_domain", domain)
}

// ResolveOrganizationID returns the organization owned by the tenant.
func (s *SupabaseHierarchy) ResolveOrganizationID(_ context.Context, tenantDomain string) (string, error) {
	o, err := s.byTenantDomain(tenantDomain)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

// ResolveTenantDomain returns the tenant domain of the organization.
func (s *SupabaseHierarchy) ResolveTenantDomain(_ context.Context, orgID string) (string, error) {
	o, err := s.byOrgID(orgID)
	if err != nil {
		return "", err
	}
	return o.TenantDomain, nil
}

// AncestorChain follows parent_id links up to the root.
func (s *SupabaseHierarchy) AncestorChain(ctx context.Context, orgID string) ([]string, error) {
	chain := []string{orgID}
	current, err := s.byOrgID(orgID)
	if err != nil {
		return nil, err
	}
	for current.ParentID != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(chain) >= maxDepth {
			return nil, fmt.Errorf("organization hierarchy of %q exceeds depth %d", orgID, maxDepth)
		}
		current, err = s.byOrgID(current.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, current.ID)
	}
	return chain, nil
}

// TenantID returns the numeric tenant id of the tenant's organization.
func (s *SupabaseHierarchy) TenantID(_ context.Context, tenantDomain string) (int, error) {
	o, err := s.byTenantDomain(tenantDomain)
	if err != nil {
		return 0, err
	}
	if o.TenantID == 0 {
		return 0, fmt.Errorf("tenant %q has no tenant id", tenantDomain)
	}
	return o.TenantID, nil
}

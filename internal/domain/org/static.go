package org

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

var (
	_ Hierarchy      = (*Static)(nil)
	_ TenantRegistry = (*Static)(nil)
)

// maxDepth bounds ancestor walks so a misconfigured parent cycle cannot loop forever.
const maxDepth = 64

// standalonePrefix marks organization IDs synthesized for unconfigured
// tenants. Configured IDs may not use it.
const standalonePrefix = "tenant:"

// Static is an in-memory hierarchy built from configuration.
//
// Tenants that are not configured behave as standalone root organizations
// whose ID is the tenant domain behind standalonePrefix, so single-tenant
// deployments need no hierarchy configuration at all.
type Static struct {
	byID     map[string]Organization
	byTenant map[string]Organization
}

// NewStatic validates the organizations and indexes them.
func NewStatic(orgs []Organization) (*Static, error) {
	s := &Static{
		byID:     make(map[string]Organization, len(orgs)),
		byTenant: make(map[string]Organization, len(orgs)),
	}
	for _, o := range orgs {
		if o.ID == "" || o.TenantDomain == "" {
			return nil, fmt.Errorf("organization requires id and tenant_domain: %+v", o)
		}
		if strings.HasPrefix(o.ID, standalonePrefix) {
			return nil, fmt.Errorf("organization id %q uses reserved prefix %q", o.ID, standalonePrefix)
		}
		if _, dup := s.byID[o.ID]; dup {
			return nil, fmt.Errorf("duplicate organization id %q", o.ID)
		}
		if _, dup := s.byTenant[o.TenantDomain]; dup {
			return nil, fmt.Errorf("duplicate tenant domain %q", o.TenantDomain)
		}
		s.byID[o.ID] = o
		s.byTenant[o.TenantDomain] = o
	}
	for _, o := range orgs {
		if o.ParentID == "" {
			continue
		}
		if _, ok := s.byID[o.ParentID]; !ok {
			return nil, fmt.Errorf("organization %q references unknown parent %q", o.ID, o.ParentID)
		}
	}
	return s, nil
}

// ResolveOrganizationID returns the configured organization of the tenant.
func (s *Static) ResolveOrganizationID(_ context.Context, tenantDomain string) (string, error) {
	if tenantDomain == "" {
		return "", fmt.Errorf("tenant domain must not be empty")
	}
	if o, ok := s.byTenant[tenantDomain]; ok {
		return o.ID, nil
	}
	return standalonePrefix + tenantDomain, nil
}

// ResolveTenantDomain returns the tenant domain that owns the organization.
func (s *Static) ResolveTenantDomain(_ context.Context, orgID string) (string, error) {
	if o, ok := s.byID[orgID]; ok {
		return o.TenantDomain, nil
	}
	domain, ok := strings.CutPrefix(orgID, standalonePrefix)
	if !ok || domain == "" {
		return "", fmt.Errorf("organization %q not found", orgID)
	}
	if _, configured := s.byTenant[domain]; configured {
		return "", fmt.Errorf("organization %q not found", orgID)
	}
	return domain, nil
}

// AncestorChain walks parent links from orgID to the root.
func (s *Static) AncestorChain(_ context.Context, orgID string) ([]string, error) {
	chain := []string{orgID}
	current, ok := s.byID[orgID]
	if !ok {
		return chain, nil
	}
	for current.ParentID != "" {
		if len(chain) >= maxDepth {
			return nil, fmt.Errorf("organization hierarchy of %q exceeds depth %d", orgID, maxDepth)
		}
		current = s.byID[current.ParentID]
		chain = append(chain, current.ID)
	}
	return chain, nil
}

// TenantID returns the configured tenant ID, or a stable hash-derived ID
// for tenants that are not configured.
func (s *Static) TenantID(_ context.Context, tenantDomain string) (int, error) {
	if tenantDomain == "" {
		return 0, fmt.Errorf("tenant domain must not be empty")
	}
	if o, ok := s.byTenant[tenantDomain]; ok && o.TenantID != 0 {
		return o.TenantID, nil
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(tenantDomain))
	return int(h.Sum32() & 0x7fffffff), nil
}

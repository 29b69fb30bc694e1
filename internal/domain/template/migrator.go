package template

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tmplhub/internal/metrics"
)

// MigrationResult summarizes one legacy migration run.
type MigrationResult struct {
	TypesCreated     int
	TemplatesCopied  int
	TemplatesSkipped int
}

// Migrator copies templates from the legacy tree store into the relational
// store. Records already present in the target are left alone and nothing is
// ever removed from the source, so a run can be repeated safely.
type Migrator struct {
	source Backend
	target Backend
}

// NewMigrator creates a new legacy migrator.
func NewMigrator(source, target Backend) *Migrator {
	return &Migrator{source: source, target: target}
}

// ProcessTask handles a legacy migration task from the queue.
func (m *Migrator) ProcessTask(ctx context.Context, p *MigrateLegacyPayload) (MigrationResult, error) {
	start := time.Now()
	var res MigrationResult

	if err := m.copyTypes(ctx, p.Channel, p.Tenant, &res); err != nil {
		return res, err
	}
	for _, app := range append([]string{""}, p.AppIDs...) {
		if err := m.copyScope(ctx, p.Channel, app, p.Tenant, &res); err != nil {
			return res, err
		}
	}

	slog.Info("legacy templates migrated",
		"tenant", p.Tenant,
		"channel", p.Channel,
		"apps", len(p.AppIDs),
		"types_created", res.TypesCreated,
		"copied", res.TemplatesCopied,
		"skipped", res.TemplatesSkipped,
		"duration", time.Since(start),
	)
	return res, nil
}

func (m *Migrator) copyTypes(ctx context.Context, channel Channel, tenant string, res *MigrationResult) error {
	names, err := m.source.ListTypes(ctx, channel, tenant)
	if err != nil {
		return fmt.Errorf("listing legacy types: %w", err)
	}
	for _, name := range names {
		ref := TypeRef{Channel: channel, DisplayName: name, Tenant: tenant}
		exists, err := m.target.TypeExists(ctx, ref)
		if err != nil {
			return fmt.Errorf("checking type %s: %w", ref, err)
		}
		if exists {
			continue
		}
		if err := m.target.AddType(ctx, ref); err != nil {
			if IsKind(err, KindDuplicate) {
				continue
			}
			return fmt.Errorf("creating type %s: %w", ref, err)
		}
		res.TypesCreated++
	}
	return nil
}

func (m *Migrator) copyScope(ctx context.Context, channel Channel, appID, tenant string, res *MigrationResult) error {
	templates, err := m.source.ListAll(ctx, channel, appID, tenant)
	if err != nil {
		return fmt.Errorf("listing legacy templates of app %q: %w", appID, err)
	}
	for _, t := range templates {
		ref := t.Ref(appID, tenant)
		exists, err := m.target.Exists(ctx, ref)
		if err != nil {
			return fmt.Errorf("checking template %s: %w", ref, err)
		}
		if exists {
			res.TemplatesSkipped++
			continue
		}
		if err := m.target.AddOrUpdate(ctx, t, appID, tenant); err != nil {
			return fmt.Errorf("copying template %s: %w", ref, err)
		}
		res.TemplatesCopied++
		metrics.MigratedTemplates.WithLabelValues(string(channel)).Inc()
	}
	return nil
}

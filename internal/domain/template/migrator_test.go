package template_test

import (
	"context"
	"testing"

	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/registry"
	"tmplhub/internal/infra/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLegacy(t *testing.T) *store.Legacy {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return store.NewLegacy(registry.NewRedisTreeWithClient(client, "migrate"))
}

func TestMigrator_CopiesMissingRecords(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	legacy := newLegacy(t)
	ctx := context.Background()

	require.NoError(t, legacy.AddType(ctx, template.TypeRef{Channel: template.ChannelSMS, DisplayName: "Empty", Tenant: childTenant}))
	require.NoError(t, legacy.AddOrUpdate(ctx, sms("Login", "en_US", "legacy org"), "", childTenant))
	require.NoError(t, legacy.AddOrUpdate(ctx, sms("Login", "fr_FR", "legacy fr"), "", childTenant))
	require.NoError(t, legacy.AddOrUpdate(ctx, sms("Login", "en_US", "legacy app"), appID, childTenant))
	require.NoError(t, env.own.AddOrUpdate(ctx, sms("Login", "en_US", "already migrated"), "", childTenant))

	m := template.NewMigrator(legacy, env.own)
	res, err := m.ProcessTask(ctx, &template.MigrateLegacyPayload{
		Tenant:  childTenant,
		Channel: template.ChannelSMS,
		AppIDs:  []string{appID},
	})
	require.NoError(t, err)
	assert.Equal(t, template.MigrationResult{TypesCreated: 1, TemplatesCopied: 2, TemplatesSkipped: 1}, res)

	got, err := env.own.Get(ctx, ref(template.ChannelSMS, "Login", "en_US", "", childTenant))
	require.NoError(t, err)
	assert.Equal(t, "already migrated", got.Body, "existing relational records win")

	got, err = env.own.Get(ctx, ref(template.ChannelSMS, "Login", "en_US", appID, childTenant))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "legacy app", got.Body)

	ok, err := env.own.TypeExists(ctx, template.TypeRef{Channel: template.ChannelSMS, DisplayName: "Empty", Tenant: childTenant})
	require.NoError(t, err)
	assert.True(t, ok)

	// the legacy copy is left in place
	ok, err = legacy.Exists(ctx, ref(template.ChannelSMS, "Login", "fr_FR", "", childTenant))
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := m.ProcessTask(ctx, &template.MigrateLegacyPayload{Tenant: childTenant, Channel: template.ChannelSMS, AppIDs: []string{appID}})
	require.NoError(t, err)
	assert.Equal(t, template.MigrationResult{TemplatesSkipped: 3}, again)
}

func TestParseMigrateLegacyPayload(t *testing.T) {
	task, err := template.NewMigrateLegacyTask(template.MigrateLegacyPayload{
		Tenant:  childTenant,
		Channel: template.ChannelEmail,
		AppIDs:  []string{appID},
	})
	require.NoError(t, err)
	assert.Equal(t, template.TaskTypeMigrateLegacy, task.Type())

	p, err := template.ParseMigrateLegacyPayload(task.Payload())
	require.NoError(t, err)
	assert.Equal(t, childTenant, p.Tenant)
	assert.Equal(t, []string{appID}, p.AppIDs)

	_, err = template.ParseMigrateLegacyPayload([]byte(`{"channel":"EMAIL"}`))
	assert.Error(t, err)
	_, err = template.ParseMigrateLegacyPayload([]byte(`{"tenant":"a.com","channel":"FAX"}`))
	assert.Error(t, err)
	_, err = template.ParseMigrateLegacyPayload([]byte(`not json`))
	assert.Error(t, err)
}

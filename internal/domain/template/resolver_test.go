package template_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tmplhub/internal/domain/org"
	"tmplhub/internal/domain/template"
	"tmplhub/internal/infra/database"
	"tmplhub/internal/infra/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rootTenant   = "carbon.super"
	parentTenant = "parent.com"
	childTenant  = "child.com"
	appID        = "0b1e6c1e-2f34-4b8e-9d2f-3a4b5c6d7e8f"
)

// testEnv is a resolver over a real SQLite relational store, a small set of
// system defaults and a three level hierarchy: child -> parent -> root.
type testEnv struct {
	own      *store.Relational
	defaults *store.Defaults
	resolver *template.Resolver
	service  *template.Service
}

func newTestEnv(t *testing.T, cfg template.ResolverConfig) *testEnv {
	t.Helper()
	ctx := context.Background()

	hierarchy, err := org.NewStatic([]org.Organization{
		{ID: "root", TenantDomain: rootTenant, TenantID: 1},
		{ID: "parent", ParentID: "root", TenantDomain: parentTenant, TenantID: 2},
		{ID: "child", ParentID: "parent", TenantDomain: childTenant, TenantID: 3},
	})
	require.NoError(t, err)

	db, err := database.Open(ctx, database.Options{
		Driver:  database.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "templates.db"),
		Migrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	defaults, err := store.NewDefaults([]*template.Template{
		email("AccountConfirmation", "en_US", "default confirm"),
		email("AccountConfirmation", "fr_FR", "confirmation par défaut"),
		sms("SMSOTP", "en_US", "Your one-time password is {{otp}}"),
	})
	require.NoError(t, err)

	own := store.NewRelational(db, hierarchy)
	resolver := template.NewResolver(defaults, own, hierarchy, cfg)
	service, err := template.NewService(template.Deps{
		Resolved:    resolver,
		Own:         own,
		EmailLocale: "en_US",
		SMSLocale:   "en_US",
	})
	require.NoError(t, err)

	return &testEnv{own: own, defaults: defaults, resolver: resolver, service: service}
}

func email(name, locale, body string) *template.Template {
	return &template.Template{
		DisplayName: name,
		Type:        template.NormalizeType(name),
		Channel:     template.ChannelEmail,
		Locale:      locale,
		ContentType: "text/html; charset=UTF-8",
		Subject:     "Subject of " + name,
		Body:        body,
		Footer:      "Regards",
	}
}

func sms(name, locale, body string) *template.Template {
	return &template.Template{
		DisplayName: name,
		Type:        template.NormalizeType(name),
		Channel:     template.ChannelSMS,
		Locale:      locale,
		Body:        body,
	}
}

func ref(channel template.Channel, name, locale, app, tenant string) template.TemplateRef {
	return template.TemplateRef{
		TypeRef: template.TypeRef{Channel: channel, DisplayName: name, Tenant: tenant},
		Locale:  locale,
		AppID:   app,
	}
}

func TestResolver_GetPrecedence(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()
	r := ref(template.ChannelEmail, "Welcome", "en_US", appID, childTenant)

	got, err := env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Nil(t, got, "nothing anywhere")

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "root"), "", rootTenant))
	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Body)

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "parent"), "", parentTenant))
	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "parent", got.Body)

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "child org"), "", childTenant))
	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "child org", got.Body)

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "child app"), appID, childTenant))
	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "child app", got.Body)

	// org-scope lookups never see application overrides
	got, err = env.resolver.Get(ctx, r.WithApp(""))
	require.NoError(t, err)
	assert.Equal(t, "child org", got.Body)
}

func TestResolver_ParentAppOverrideAppliesToChildApp(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "parent app"), appID, parentTenant))

	got, err := env.resolver.Get(ctx, ref(template.ChannelEmail, "Welcome", "en_US", appID, childTenant))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "parent app", got.Body)
}

func TestResolver_DefaultsAreLastResort(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()
	r := ref(template.ChannelEmail, "AccountConfirmation", "en_US", "", childTenant)

	got, err := env.resolver.Get(ctx, r)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "default confirm", got.Body)

	ok, err := env.resolver.Exists(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.resolver.TypeExists(ctx, r.TypeRef)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, env.own.AddOrUpdate(ctx, email("AccountConfirmation", "en_US", "root confirm"), "", rootTenant))
	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "root confirm", got.Body)
}

func TestResolver_ListTypesChildWins(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()

	require.NoError(t, env.own.AddType(ctx, template.TypeRef{Channel: template.ChannelEmail, DisplayName: "welcome", Tenant: parentTenant}))
	require.NoError(t, env.own.AddType(ctx, template.TypeRef{Channel: template.ChannelEmail, DisplayName: "Welcome", Tenant: childTenant}))
	require.NoError(t, env.own.AddType(ctx, template.TypeRef{Channel: template.ChannelEmail, DisplayName: "Reset", Tenant: rootTenant}))

	names, err := env.resolver.ListTypes(ctx, template.ChannelEmail, childTenant)
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome", "Reset", "AccountConfirmation"}, names)
}

func TestResolver_ListsMergeScopesAndDefaults(t *testing.T) {
	for _, parallelism := range []int{0, 4} {
		env := newTestEnv(t, template.ResolverConfig{Parallelism: parallelism})
		ctx := context.Background()

		require.NoError(t, env.own.AddOrUpdate(ctx, email("AccountConfirmation", "en_US", "parent"), "", parentTenant))
		require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "child org"), "", childTenant))
		require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "child app"), appID, childTenant))
		require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "de_DE", "root de"), "", rootTenant))

		all, err := env.resolver.ListAll(ctx, template.ChannelEmail, appID, childTenant)
		require.NoError(t, err)

		bodies := map[string]string{}
		for _, tmpl := range all {
			bodies[tmpl.Type+"/"+tmpl.Locale] = tmpl.Body
		}
		assert.Equal(t, map[string]string{
			"welcome/en_US":             "child app",
			"welcome/de_DE":             "root de",
			"accountconfirmation/en_US": "parent",
			"accountconfirmation/fr_FR": "confirmation par défaut",
		}, bodies, "parallelism %d", parallelism)

		ofType, err := env.resolver.ListOfType(ctx, template.TypeRef{Channel: template.ChannelEmail, DisplayName: "AccountConfirmation", Tenant: childTenant}, "")
		require.NoError(t, err)
		require.Len(t, ofType, 2)
		assert.Equal(t, "parent", ofType[0].Body)
	}
}

func TestResolver_DefaultSuppressionIsIdempotent(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()
	same := sms("SMSOTP", "en_US", "Your one-time password is {{otp}}")

	for range 2 {
		require.NoError(t, env.resolver.AddOrUpdate(ctx, same, "", childTenant))

		stored, err := env.own.ListAll(ctx, template.ChannelSMS, "", childTenant)
		require.NoError(t, err)
		assert.Empty(t, stored)
	}
}

func TestResolver_DefaultContentResetsOverride(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()
	r := ref(template.ChannelSMS, "SMSOTP", "en_US", "", childTenant)

	require.NoError(t, env.resolver.AddOrUpdate(ctx, sms("SMSOTP", "en_US", "custom {{otp}}"), "", childTenant))
	got, err := env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "custom {{otp}}", got.Body)

	require.NoError(t, env.resolver.AddOrUpdate(ctx, sms("SMSOTP", "en_US", "Your one-time password is {{otp}}"), "", childTenant))

	ok, err := env.own.Exists(ctx, r)
	require.NoError(t, err)
	assert.False(t, ok, "override removed")

	got, err = env.resolver.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "Your one-time password is {{otp}}", got.Body)
}

func TestResolver_WritesStayInRequestingTenant(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	ctx := context.Background()

	require.NoError(t, env.own.AddOrUpdate(ctx, email("Welcome", "en_US", "parent"), "", parentTenant))
	require.NoError(t, env.resolver.Delete(ctx, ref(template.ChannelEmail, "Welcome", "en_US", "", childTenant)))

	got, err := env.own.Get(ctx, ref(template.ChannelEmail, "Welcome", "en_US", "", parentTenant))
	require.NoError(t, err)
	assert.NotNil(t, got)
}

type brokenHierarchy struct {
	org.Hierarchy
}

func (brokenHierarchy) ResolveOrganizationID(context.Context, string) (string, error) {
	return "", errors.New("identity service unavailable")
}

func TestResolver_OrgResolutionFailure(t *testing.T) {
	env := newTestEnv(t, template.ResolverConfig{})
	resolver := template.NewResolver(env.defaults, env.own, brokenHierarchy{}, template.ResolverConfig{})

	_, err := resolver.Get(context.Background(), ref(template.ChannelSMS, "Welcome", "en_US", "", childTenant))
	require.Error(t, err)
	assert.True(t, template.IsKind(err, template.KindOrgResolution))

	// a default hit answers existence without walking the hierarchy
	ok, err := resolver.TypeExists(context.Background(), template.TypeRef{Channel: template.ChannelSMS, DisplayName: "SMSOTP", Tenant: childTenant})
	require.NoError(t, err)
	assert.True(t, ok)
}

package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"tmplhub/internal/domain/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBackend struct {
	template.Backend
	gets  atomic.Int32
	lists atomic.Int32
}

func (c *countingBackend) Get(ctx context.Context, ref template.TemplateRef) (*template.Template, error) {
	c.gets.Add(1)
	return c.Backend.Get(ctx, ref)
}

func (c *countingBackend) ListAll(ctx context.Context, channel template.Channel, appID, tenant string) ([]*template.Template, error) {
	c.lists.Add(1)
	return c.Backend.ListAll(ctx, channel, appID, tenant)
}

func setupCached(t *testing.T) (*Cached, *countingBackend) {
	t.Helper()
	inner := &countingBackend{Backend: setupRelational(t)}
	c := NewCached(inner, time.Minute, 0)
	t.Cleanup(c.Close)
	return c, inner
}

func TestCached_ServesRepeatedReads(t *testing.T) {
	c, inner := setupCached(t)
	ctx := context.Background()
	ref := tmplRef(template.ChannelSMS, "OTP", "en_US", "", "acme.com")

	require.NoError(t, c.AddOrUpdate(ctx, smsTemplate("OTP", "en_US", "v1"), "", "acme.com"))

	for range 3 {
		got, err := c.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "v1", got.Body)
	}
	assert.Equal(t, int32(1), inner.gets.Load())

	// misses are cached too
	for range 2 {
		got, err := c.Get(ctx, ref.WithApp(testApp))
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(2), inner.gets.Load())
}

func TestCached_WriteInvalidatesTenant(t *testing.T) {
	c, inner := setupCached(t)
	ctx := context.Background()
	ref := tmplRef(template.ChannelSMS, "OTP", "en_US", "", "acme.com")

	require.NoError(t, c.AddOrUpdate(ctx, smsTemplate("OTP", "en_US", "v1"), "", "acme.com"))
	_, err := c.Get(ctx, ref)
	require.NoError(t, err)
	_, err = c.ListAll(ctx, template.ChannelSMS, "", "other.com")
	require.NoError(t, err)

	require.NoError(t, c.AddOrUpdate(ctx, smsTemplate("OTP", "en_US", "v2"), "", "acme.com"))

	got, err := c.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Body)
	assert.Equal(t, int32(2), inner.gets.Load())

	_, err = c.ListAll(ctx, template.ChannelSMS, "", "other.com")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.lists.Load(), "other tenants keep their entries")

	require.NoError(t, c.Delete(ctx, ref))
	got, err = c.Get(ctx, ref)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCached_ReturnsCopies(t *testing.T) {
	c, _ := setupCached(t)
	ctx := context.Background()
	ref := tmplRef(template.ChannelSMS, "OTP", "en_US", "", "acme.com")

	require.NoError(t, c.AddOrUpdate(ctx, smsTemplate("OTP", "en_US", "v1"), "", "acme.com"))

	got, err := c.Get(ctx, ref)
	require.NoError(t, err)
	got.Body = "mutated"

	again, err := c.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v1", again.Body)

	list, err := c.ListAll(ctx, template.ChannelSMS, "", "acme.com")
	require.NoError(t, err)
	list[0].Body = "mutated"

	list, err = c.ListAll(ctx, template.ChannelSMS, "", "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "v1", list[0].Body)
}

func TestFactory(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Kind
	}{
		{"", KindDatabase},
		{"database", KindDatabase},
		{"Registry", KindRegistry},
		{" hybrid ", KindHybrid},
	} {
		got, err := ParseKind(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseKind("jdbc")
	assert.Error(t, err)

	_, err = New(Options{Kind: KindDatabase})
	assert.Error(t, err, "database kind needs a database")

	_, err = New(Options{Kind: KindHybrid})
	assert.Error(t, err)

	_, tree := setupLegacy(t)
	b, err := New(Options{Kind: KindRegistry, Tree: tree})
	require.NoError(t, err)
	assert.IsType(t, &Legacy{}, b)

	b, err = New(Options{Kind: KindRegistry, Tree: tree, CacheTTL: time.Minute})
	require.NoError(t, err)
	require.IsType(t, &Cached{}, b)
	b.(*Cached).Close()
}

package store

import (
	"context"
	"testing"

	"tmplhub/internal/domain/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDefaults(t *testing.T) *Defaults {
	t.Helper()
	d, err := NewDefaults([]*template.Template{
		emailTemplate("AccountConfirmation", "en_US", "confirm"),
		emailTemplate("AccountConfirmation", "fr_FR", "confirmez"),
		smsTemplate("SMSOTP", "en_US", "otp {{otp}}"),
	})
	require.NoError(t, err)
	return d
}

func TestDefaults_Reads(t *testing.T) {
	d := newTestDefaults(t)
	ctx := context.Background()

	ok, err := d.TypeExists(ctx, typeRef(template.ChannelEmail, "accountconfirmation", "any.com"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.TypeExists(ctx, typeRef(template.ChannelSMS, "AccountConfirmation", "any.com"))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := d.Get(ctx, tmplRef(template.ChannelEmail, "AccountConfirmation", "fr_FR", "", "any.com"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "confirmez", got.Body)

	got.Body = "mutated"
	again, err := d.Get(ctx, tmplRef(template.ChannelEmail, "AccountConfirmation", "fr_FR", "", "any.com"))
	require.NoError(t, err)
	assert.Equal(t, "confirmez", again.Body, "callers get copies")

	got, err = d.Get(ctx, tmplRef(template.ChannelEmail, "AccountConfirmation", "en_US", testApp, "any.com"))
	require.NoError(t, err)
	assert.Nil(t, got, "defaults have no application scope")

	names, err := d.ListTypes(ctx, template.ChannelEmail, "any.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"AccountConfirmation"}, names)

	list, err := d.ListOfType(ctx, typeRef(template.ChannelEmail, "AccountConfirmation", "any.com"), "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "en_US", list[0].Locale)

	all, err := d.ListAll(ctx, template.ChannelSMS, "", "any.com")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDefaults_EveryMutationFails(t *testing.T) {
	d := newTestDefaults(t)
	ctx := context.Background()
	ref := tmplRef(template.ChannelSMS, "SMSOTP", "en_US", "", "any.com")

	errs := []error{
		d.AddType(ctx, ref.TypeRef),
		d.DeleteType(ctx, ref.TypeRef),
		d.AddOrUpdate(ctx, smsTemplate("SMSOTP", "en_US", "x"), "", "any.com"),
		d.Delete(ctx, ref),
		d.DeleteOfType(ctx, ref.TypeRef, ""),
	}
	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, template.IsKind(err, template.KindReadOnly))
	}

	ok, err := d.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDefaults_IsDefaultContent(t *testing.T) {
	d := newTestDefaults(t)

	same := smsTemplate("SMS OTP", "en_us", "otp {{otp}}")
	assert.True(t, d.IsDefaultContent(same))

	assert.False(t, d.IsDefaultContent(smsTemplate("SMSOTP", "en_US", "different")))
	assert.False(t, d.IsDefaultContent(smsTemplate("Other", "en_US", "otp {{otp}}")))
	assert.False(t, d.IsDefaultContent(nil))
}

func TestNewDefaults_RejectsInvalid(t *testing.T) {
	_, err := NewDefaults([]*template.Template{smsTemplate("x", "en_US", "")})
	assert.Error(t, err)
}

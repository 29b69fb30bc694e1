package template

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"tmplhub/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AccountConfirmation", "accountconfirmation"},
		{"Account Confirmation", "accountconfirmation"},
		{"  Password\tReset\n", "passwordreset"},
		{"sms.otp_v2-final", "sms.otp_v2-final"},
		{"Ünïcode & Symbols!", "ncodesymbols"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeType(tt.in))
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	for _, name := range []string{"", "   ", "!!!", ".", "..", "...", "é"} {
		err := ValidateDisplayName(name)
		var client *common.ClientError
		require.True(t, errors.As(err, &client), "%q", name)
		assert.Equal(t, common.CodeInvalidDisplayName, client.Code)
	}
	for _, name := range []string{"OTP", ".otp", "_", "Account Confirmation"} {
		assert.NoError(t, ValidateDisplayName(name), name)
	}
}

func TestNormalizeType_Properties(t *testing.T) {
	allowed := regexp.MustCompile(`^[a-z0-9._-]*$`)
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "displayName")
		once := NormalizeType(s)
		if NormalizeType(once) != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, NormalizeType(once))
		}
		if !allowed.MatchString(once) {
			t.Fatalf("illegal characters in %q", once)
		}
	})
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "en_US", want: "en_US"},
		{in: "en-us", want: "en_US"},
		{in: " FR_fr ", want: "fr_FR"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "english", wantErr: true},
		{in: "en_USA", wantErr: true},
		{in: "e1_US", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeLocale(tt.in)
			if tt.wantErr {
				var clientErr *common.ClientError
				require.True(t, errors.As(err, &clientErr))
				assert.Equal(t, common.CodeInvalidLocale, clientErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLocale_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lang := rapid.StringMatching(`[a-zA-Z]{2}`).Draw(t, "lang")
		country := rapid.StringMatching(`[a-zA-Z]{2}`).Draw(t, "country")
		sep := rapid.SampledFrom([]string{"_", "-"}).Draw(t, "sep")

		once, err := NormalizeLocale(lang + sep + country)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		twice, err := NormalizeLocale(once)
		if err != nil || twice != once {
			t.Fatalf("not idempotent: %q -> %q (%v)", once, twice, err)
		}
		if once != strings.ToLower(lang)+"_"+strings.ToUpper(country) {
			t.Fatalf("unexpected form %q", once)
		}
	})
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, "text/html; charset=UTF-8", NormalizeContentType(""))
	assert.Equal(t, "text/plain; charset=UTF-8", NormalizeContentType("text/plain"))
	assert.Equal(t, "text/html; charset=ISO-8859-1", NormalizeContentType("text/html; charset=ISO-8859-1"))
}

func TestNormalize(t *testing.T) {
	email := &Template{DisplayName: "Welcome Mail", Type: "stale", Channel: ChannelEmail, Locale: "en-us"}
	require.NoError(t, Normalize(email))
	assert.Equal(t, "welcomemail", email.Type, "disagreeing type is corrected")
	assert.Equal(t, "en_US", email.Locale)
	assert.Equal(t, "text/html; charset=UTF-8", email.ContentType)

	sms := &Template{DisplayName: "OTP", Channel: ChannelSMS, Locale: "en_US", ContentType: "text/html"}
	require.NoError(t, Normalize(sms))
	assert.Empty(t, sms.ContentType)
}

func TestValidate(t *testing.T) {
	valid := func() *Template {
		return &Template{DisplayName: "Welcome", Channel: ChannelEmail, Locale: "en_US", Subject: "s", Body: "b", Footer: "f"}
	}

	tests := []struct {
		name   string
		mutate func(t *Template)
		code   common.ErrorCode
	}{
		{"valid email", func(*Template) {}, ""},
		{"blank display name", func(t *Template) { t.DisplayName = "  " }, common.CodeInvalidDisplayName},
		{"bad locale", func(t *Template) { t.Locale = "english" }, common.CodeInvalidLocale},
		{"email without footer", func(t *Template) { t.Footer = " " }, common.CodeInvalidTemplate},
		{"email without subject", func(t *Template) { t.Subject = "" }, common.CodeInvalidTemplate},
		{"valid sms", func(t *Template) { t.Channel = ChannelSMS; t.Subject = ""; t.Footer = "" }, ""},
		{"sms with subject", func(t *Template) { t.Channel = ChannelSMS; t.Footer = "" }, common.CodeInvalidTemplate},
		{"sms blank body", func(t *Template) { t.Channel = ChannelSMS; t.Subject = ""; t.Footer = ""; t.Body = "" }, common.CodeInvalidTemplate},
		{"unknown channel", func(t *Template) { t.Channel = "FAX" }, common.CodeInvalidChannel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := valid()
			tt.mutate(tmpl)
			err := Validate(tmpl)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var clientErr *common.ClientError
			require.ErrorAs(t, err, &clientErr)
			assert.Equal(t, tt.code, clientErr.Code)
		})
	}

	assert.Error(t, Validate(nil))
}

func TestContentEqual(t *testing.T) {
	a := &Template{DisplayName: "Welcome", Channel: ChannelSMS, Locale: "en_US", Body: "hi", ContentType: "x"}
	b := &Template{DisplayName: "welcome", Channel: ChannelSMS, Locale: "EN_us", Body: "hi"}
	assert.True(t, ContentEqual(a, b), "content type and casing are ignored")

	c := *b
	c.Body = "hi "
	assert.False(t, ContentEqual(a, &c))

	d := *b
	d.Channel = ChannelEmail
	assert.False(t, ContentEqual(a, &d))

	assert.False(t, ContentEqual(a, nil))
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("email")
	require.NoError(t, err)
	assert.Equal(t, ChannelEmail, ch)

	ch, err = ParseChannel(" Sms ")
	require.NoError(t, err)
	assert.Equal(t, ChannelSMS, ch)

	_, err = ParseChannel("push")
	var clientErr *common.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, common.CodeInvalidChannel, clientErr.Code)
}

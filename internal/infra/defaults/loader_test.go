package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"tmplhub/internal/common"
	"tmplhub/internal/domain/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	list, err := Load("")
	require.NoError(t, err)
	require.NotEmpty(t, list)

	var email, sms int
	for _, tmpl := range list {
		assert.Equal(t, template.NormalizeType(tmpl.DisplayName), tmpl.Type)
		switch tmpl.Channel {
		case template.ChannelEmail:
			email++
			assert.Contains(t, tmpl.ContentType, "charset=UTF-8")
		case template.ChannelSMS:
			sms++
			assert.Empty(t, tmpl.Subject)
			assert.Empty(t, tmpl.Footer)
		}
	}
	assert.Positive(t, email)
	assert.Positive(t, sms)
}

func TestLoad_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sms:
  - display_name: " Welcome "
    locale: en-us
    body: "hello"
`), 0o600))

	list, err := Load(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "welcome", list[0].Type)
	assert.Equal(t, "en_US", list[0].Locale)
	assert.Equal(t, template.ChannelSMS, list[0].Channel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_InvalidEntry(t *testing.T) {
	_, err := Parse([]byte(`
email:
  - display_name: Welcome
    locale: en_US
    subject: hi
    body: body
`))
	require.Error(t, err)

	var clientErr *common.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, common.CodeInvalidTemplate, clientErr.Code)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("email: [unclosed"))
	assert.Error(t, err)
}

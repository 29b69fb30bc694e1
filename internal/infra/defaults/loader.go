package defaults

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"tmplhub/internal/domain/template"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var embedded []byte

// entry is one template as written in the defaults file.
type entry struct {
	DisplayName string `yaml:"display_name"`
	Locale      string `yaml:"locale"`
	ContentType string `yaml:"content_type"`
	Subject     string `yaml:"subject"`
	Body        string `yaml:"body"`
	Footer      string `yaml:"footer"`
}

type document struct {
	Email []entry `yaml:"email"`
	SMS   []entry `yaml:"sms"`
}

// Load reads the system default templates from path, or from the file built
// into the binary when path is empty. Every entry is validated and
// normalized; the first invalid entry fails the load.
func Load(path string) ([]*template.Template, error) {
	data := embedded
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading defaults file: %w", err)
		}
	}
	return Parse(data)
}

// Parse decodes a defaults document.
func Parse(data []byte) ([]*template.Template, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing defaults: %w", err)
	}

	out := make([]*template.Template, 0, len(doc.Email)+len(doc.SMS))
	for _, group := range []struct {
		channel template.Channel
		entries []entry
	}{
		{template.ChannelEmail, doc.Email},
		{template.ChannelSMS, doc.SMS},
	} {
		for i, e := range group.entries {
			t := &template.Template{
				DisplayName: strings.TrimSpace(e.DisplayName),
				Channel:     group.channel,
				Locale:      e.Locale,
				ContentType: e.ContentType,
				Subject:     e.Subject,
				Body:        e.Body,
				Footer:      e.Footer,
			}
			if err := template.Validate(t); err != nil {
				return nil, fmt.Errorf("%s default #%d (%s): %w", group.channel, i, e.DisplayName, err)
			}
			if err := template.Normalize(t); err != nil {
				return nil, fmt.Errorf("%s default #%d (%s): %w", group.channel, i, e.DisplayName, err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

package template

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"tmplhub/internal/common"
)

const (
	defaultContentType = "text/html"
	charsetUTF8        = "charset=UTF-8"
)

var localePattern = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}$`)

// NormalizeType derives the type identifier from a display name: lowercased,
// with whitespace and anything outside [a-z0-9._-] removed.
func NormalizeType(displayName string) string {
	var b strings.Builder
	b.Grow(len(displayName))
	for _, r := range strings.ToLower(displayName) {
		switch {
		case unicode.IsSpace(r):
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidTypeKey reports whether key can identify a type. Keys that are empty
// or made only of dots are rejected since stores address types by key.
func ValidTypeKey(key string) bool {
	return strings.Trim(key, ".") != ""
}

// NormalizeLocale converts locales such as "en-us" or "EN_us" into the
// canonical xx_YY form.
func NormalizeLocale(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", common.NewClientError(common.CodeInvalidLocale, "locale must not be blank")
	}
	s = strings.ReplaceAll(s, "-", "_")
	if lang, country, ok := strings.Cut(s, "_"); ok {
		s = strings.ToLower(lang) + "_" + strings.ToUpper(country)
	}
	if !localePattern.MatchString(s) {
		return "", common.NewClientError(common.CodeInvalidLocale, fmt.Sprintf("invalid locale format: %q", raw))
	}
	return s, nil
}

// NormalizeContentType fills in the default content type and makes sure a
// UTF-8 charset is declared.
func NormalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		ct = defaultContentType
	}
	if !strings.Contains(strings.ToLower(ct), "charset=") {
		ct += "; " + charsetUTF8
	}
	return ct
}

// Normalize rewrites the derived fields of t in place: type, locale and
// content type. A stored type disagreeing with the display name is corrected.
func Normalize(t *Template) error {
	locale, err := NormalizeLocale(t.Locale)
	if err != nil {
		return err
	}
	t.Locale = locale
	t.Type = NormalizeType(t.DisplayName)
	if t.Channel == ChannelEmail {
		t.ContentType = NormalizeContentType(t.ContentType)
	} else {
		t.ContentType = ""
	}
	return nil
}

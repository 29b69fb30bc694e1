package template

import (
	"fmt"
	"strings"

	"tmplhub/internal/common"
)

// ValidateDisplayName rejects blank display names and names that do not
// normalize to a usable type key.
func ValidateDisplayName(displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return common.NewClientError(common.CodeInvalidDisplayName, "template display name must not be blank")
	}
	if !ValidTypeKey(NormalizeType(displayName)) {
		return common.NewClientError(common.CodeInvalidDisplayName,
			fmt.Sprintf("template display name %q has no letters or digits", displayName))
	}
	return nil
}

// ValidateContent checks the channel-specific content shape of t.
func ValidateContent(t *Template) error {
	switch t.Channel {
	case ChannelSMS:
		if strings.TrimSpace(t.Body) == "" {
			return invalidTemplate(t, "sms body must not be blank")
		}
		if t.Subject != "" || t.Footer != "" {
			return invalidTemplate(t, "sms templates cannot have a subject or footer")
		}
	case ChannelEmail:
		switch {
		case strings.TrimSpace(t.Subject) == "":
			return invalidTemplate(t, "email subject must not be blank")
		case strings.TrimSpace(t.Body) == "":
			return invalidTemplate(t, "email body must not be blank")
		case strings.TrimSpace(t.Footer) == "":
			return invalidTemplate(t, "email footer must not be blank")
		}
	default:
		return common.NewClientError(common.CodeInvalidChannel, fmt.Sprintf("unsupported notification channel: %q", t.Channel))
	}
	return nil
}

// Validate runs every structural check on t. It does not normalize.
func Validate(t *Template) error {
	if t == nil {
		return common.NewClientError(common.CodeInvalidTemplate, "template must not be empty")
	}
	if err := ValidateDisplayName(t.DisplayName); err != nil {
		return err
	}
	if _, err := NormalizeLocale(t.Locale); err != nil {
		return err
	}
	return ValidateContent(t)
}

// ContentEqual reports whether a and b carry identical content for the same
// type, locale and channel. Content type is presentation only and ignored.
func ContentEqual(a, b *Template) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Channel == b.Channel &&
		NormalizeType(a.DisplayName) == NormalizeType(b.DisplayName) &&
		strings.EqualFold(a.Locale, b.Locale) &&
		a.Subject == b.Subject &&
		a.Body == b.Body &&
		a.Footer == b.Footer
}

func invalidTemplate(t *Template, reason string) error {
	return common.NewClientError(common.CodeInvalidTemplate,
		fmt.Sprintf("invalid %s template %q (%s): %s", t.Channel, t.DisplayName, t.Locale, reason))
}

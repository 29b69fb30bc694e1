package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tmplhub/internal/common"
)

// Deps holds everything the Service needs. It replaces any process-wide
// holder: the wiring in cmd/ constructs it once and passes it in.
type Deps struct {
	// Resolved resolves through the hierarchy and system defaults. All writes
	// go through it.
	Resolved Backend

	// Own reads only the tenant's own stored records.
	Own Backend

	// EmailLocale and SMSLocale are the per-channel default locales used
	// as the last locale fallback.
	EmailLocale string
	SMSLocale   string
}

// Service is the public façade over template storage: it validates and
// normalizes input, picks the backend and translates backend failures into
// the public error codes.
type Service struct {
	resolved       Backend
	own            Backend
	defaultLocales map[Channel]string
}

// NewService creates a new template service.
func NewService(deps Deps) (*Service, error) {
	if deps.Resolved == nil || deps.Own == nil {
		return nil, errors.New("template service requires both resolved and own backends")
	}
	email, err := NormalizeLocale(deps.EmailLocale)
	if err != nil {
		return nil, fmt.Errorf("email default locale: %w", err)
	}
	sms, err := NormalizeLocale(deps.SMSLocale)
	if err != nil {
		return nil, fmt.Errorf("sms default locale: %w", err)
	}
	return &Service{
		resolved: deps.Resolved,
		own:      deps.Own,
		defaultLocales: map[Channel]string{
			ChannelEmail: email,
			ChannelSMS:   sms,
		},
	}, nil
}

// DefaultLocale returns the configured default locale of the channel.
func (s *Service) DefaultLocale(channel Channel) string {
	return s.defaultLocales[channel]
}

func (s *Service) reader(resolve bool) Backend {
	if resolve {
		return s.resolved
	}
	return s.own
}

// AddTemplateType registers a new template type. Adding a type that already
// resolves for the tenant, including a system default, is rejected.
func (s *Service) AddTemplateType(ctx context.Context, channel Channel, displayName, tenant string) error {
	if err := ValidateDisplayName(displayName); err != nil {
		return err
	}
	name, err := s.displayNameForWrite(ctx, channel, displayName, tenant)
	if err != nil {
		return translate(err)
	}
	ref := TypeRef{Channel: channel, DisplayName: name, Tenant: tenant}

	exists, err := s.resolved.TypeExists(ctx, ref)
	if err != nil {
		return translate(err)
	}
	if exists {
		return typeAlreadyExists(ref, nil)
	}

	if err := s.resolved.AddType(ctx, ref); err != nil {
		if IsKind(err, KindDuplicate) {
			// Lost a race with a concurrent add of the same type.
			return typeAlreadyExists(ref, err)
		}
		return translate(err)
	}

	slog.Info("template type added", "tenant", tenant, "channel", channel, "type", ref.Key())
	return nil
}

// TemplateTypeExists reports whether the type exists for the tenant.
func (s *Service) TemplateTypeExists(ctx context.Context, channel Channel, displayName, tenant string, resolve bool) (bool, error) {
	if err := ValidateDisplayName(displayName); err != nil {
		return false, err
	}
	ref := TypeRef{Channel: channel, DisplayName: displayName, Tenant: tenant}
	exists, err := s.reader(resolve).TypeExists(ctx, ref)
	return exists, translate(err)
}

// ListTemplateTypes returns the display names of the tenant's template types.
func (s *Service) ListTemplateTypes(ctx context.Context, channel Channel, tenant string, resolve bool) ([]string, error) {
	names, err := s.reader(resolve).ListTypes(ctx, channel, tenant)
	if err != nil {
		return nil, translate(err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DeleteTemplateType deletes a type stored by the tenant together with all
// of its templates. System defaults cannot be deleted and stay resolvable.
func (s *Service) DeleteTemplateType(ctx context.Context, channel Channel, displayName, tenant string) error {
	if err := ValidateDisplayName(displayName); err != nil {
		return err
	}
	ref := TypeRef{Channel: channel, DisplayName: displayName, Tenant: tenant}

	exists, err := s.own.TypeExists(ctx, ref)
	if err != nil {
		return translate(err)
	}
	if !exists {
		return common.NewClientError(common.CodeTemplateTypeNotFound,
			fmt.Sprintf("template type %q does not exist for %s in tenant %s", displayName, channel, tenant))
	}

	if err := s.resolved.DeleteType(ctx, ref); err != nil {
		return translate(err)
	}
	slog.Info("template type deleted", "tenant", tenant, "channel", channel, "type", ref.Key())
	return nil
}

// AddOrUpdateTemplate validates, normalizes and stores t. The owning type is
// created when missing. Content equal to a system default resets the
// template to that default instead of storing a copy.
func (s *Service) AddOrUpdateTemplate(ctx context.Context, t *Template, appID, tenant string) error {
	if err := validateAppID(appID); err != nil {
		return err
	}
	if err := Validate(t); err != nil {
		return err
	}

	in := t.Clone()
	name, err := s.displayNameForWrite(ctx, in.Channel, in.DisplayName, tenant)
	if err != nil {
		return translate(err)
	}
	in.DisplayName = name
	if err := Normalize(in); err != nil {
		return err
	}

	if err := s.resolved.AddOrUpdate(ctx, in, appID, tenant); err != nil {
		return translate(err)
	}
	slog.Info("template stored",
		"tenant", tenant,
		"channel", in.Channel,
		"type", in.Type,
		"locale", in.Locale,
		"app", appID,
	)
	return nil
}

// TemplateExists reports whether the template exists for the tenant.
func (s *Service) TemplateExists(ctx context.Context, ref TemplateRef, resolve bool) (bool, error) {
	ref, err := s.normalizeRef(ref)
	if err != nil {
		return false, err
	}
	exists, err := s.reader(resolve).Exists(ctx, ref)
	return exists, translate(err)
}

// GetTemplate returns a template. Without resolve only the tenant's own
// record is returned. With resolve the hierarchy and system defaults are
// searched and a missing locale falls back to the channel's default locale;
// a miss at the default locale is a server error so dispatch never proceeds
// without a template.
func (s *Service) GetTemplate(ctx context.Context, ref TemplateRef, resolve bool) (*Template, error) {
	ref, err := s.normalizeRef(ref)
	if err != nil {
		return nil, err
	}

	if !resolve {
		t, err := s.own.Get(ctx, ref)
		if err != nil {
			return nil, translate(err)
		}
		if t == nil {
			return nil, common.NewClientError(common.CodeTemplateNotFound,
				fmt.Sprintf("template %s not found", ref))
		}
		return t, nil
	}

	t, err := s.resolveWithLocaleFallback(ctx, ref)
	if err != nil {
		var internal *common.InternalError
		if errors.As(err, &internal) && internal.Code == common.CodeTemplateNotFoundAtDefaultLocale {
			slog.Error("template not found at default locale", "template", ref.String())
			return nil, &common.ServerError{
				Code:    common.CodeTemplateNotFound,
				Message: fmt.Sprintf("no template available for %s", ref),
				Err:     err,
			}
		}
		return nil, translate(err)
	}
	return t, nil
}

func (s *Service) resolveWithLocaleFallback(ctx context.Context, ref TemplateRef) (*Template, error) {
	t, err := s.resolved.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	fallback := s.defaultLocales[ref.Channel]
	if ref.Locale == fallback {
		return nil, common.NewInternalError(common.CodeTemplateNotFoundAtDefaultLocale,
			fmt.Sprintf("template %s not found", ref))
	}
	slog.Debug("template locale not found, retrying with default locale",
		"template", ref.String(),
		"default_locale", fallback,
	)
	ref.Locale = fallback
	return s.resolveWithLocaleFallback(ctx, ref)
}

// ListTemplatesOfType returns every locale of the type.
func (s *Service) ListTemplatesOfType(ctx context.Context, ref TypeRef, appID string, resolve bool) ([]*Template, error) {
	if err := ValidateDisplayName(ref.DisplayName); err != nil {
		return nil, err
	}
	if err := validateAppID(appID); err != nil {
		return nil, err
	}
	templates, err := s.reader(resolve).ListOfType(ctx, ref, appID)
	if err != nil {
		return nil, translate(err)
	}
	return nonNil(templates), nil
}

// ListAllTemplates returns every template of the channel.
func (s *Service) ListAllTemplates(ctx context.Context, channel Channel, appID, tenant string, resolve bool) ([]*Template, error) {
	if err := validateAppID(appID); err != nil {
		return nil, err
	}
	templates, err := s.reader(resolve).ListAll(ctx, channel, appID, tenant)
	if err != nil {
		return nil, translate(err)
	}
	return nonNil(templates), nil
}

// DeleteTemplate deletes a single template stored by the tenant. Deleting a
// template that is not stored is a no-op.
func (s *Service) DeleteTemplate(ctx context.Context, ref TemplateRef) error {
	ref, err := s.normalizeRef(ref)
	if err != nil {
		return err
	}
	if err := s.resolved.Delete(ctx, ref); err != nil {
		return translate(err)
	}
	slog.Info("template deleted", "template", ref.String())
	return nil
}

// DeleteAllOfType deletes every locale of a type within one scope.
func (s *Service) DeleteAllOfType(ctx context.Context, ref TypeRef, appID string) error {
	if err := ValidateDisplayName(ref.DisplayName); err != nil {
		return err
	}
	if err := validateAppID(appID); err != nil {
		return err
	}
	exists, err := s.own.TypeExists(ctx, ref)
	if err != nil {
		return translate(err)
	}
	if !exists {
		return common.NewClientError(common.CodeTemplateTypeNotFound,
			fmt.Sprintf("template type %q does not exist for %s in tenant %s", ref.DisplayName, ref.Channel, ref.Tenant))
	}
	if err := s.resolved.DeleteOfType(ctx, ref, appID); err != nil {
		return translate(err)
	}
	slog.Info("templates of type deleted", "type", ref.String(), "app", appID)
	return nil
}

// displayNameForWrite trims display names of new records. A type already
// stored under the untrimmed name keeps it.
func (s *Service) displayNameForWrite(ctx context.Context, channel Channel, raw, tenant string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == raw {
		return raw, nil
	}
	exists, err := s.own.TypeExists(ctx, TypeRef{Channel: channel, DisplayName: raw, Tenant: tenant})
	if err != nil {
		return "", err
	}
	if exists {
		return raw, nil
	}
	return trimmed, nil
}

func (s *Service) normalizeRef(ref TemplateRef) (TemplateRef, error) {
	if err := ValidateDisplayName(ref.DisplayName); err != nil {
		return ref, err
	}
	if err := validateAppID(ref.AppID); err != nil {
		return ref, err
	}
	locale, err := NormalizeLocale(ref.Locale)
	if err != nil {
		return ref, err
	}
	ref.Locale = locale
	return ref, nil
}

func validateAppID(appID string) error {
	if appID == "" {
		return nil
	}
	if _, err := uuid.Parse(appID); err != nil {
		return common.NewClientError(common.CodeInvalidApplication, fmt.Sprintf("invalid application id %q", appID))
	}
	return nil
}

func typeAlreadyExists(ref TypeRef, cause error) error {
	return &common.ClientError{
		Code:    common.CodeTemplateTypeAlreadyExists,
		Message: fmt.Sprintf("template type %q already exists for %s in tenant %s", ref.DisplayName, ref.Channel, ref.Tenant),
		Err: &common.InternalError{
			Code:    common.CodeDuplicateTemplateType,
			Message: "duplicate template type",
			Err:     cause,
		},
	}
}

// translate maps backend failures onto the public error codes. Errors that
// already carry a public code pass through unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var client *common.ClientError
	var internal *common.InternalError
	var server *common.ServerError
	if errors.As(err, &client) || errors.As(err, &internal) || errors.As(err, &server) {
		return err
	}

	var se *StoreError
	if !errors.As(err, &se) {
		return common.NewServerError(common.CodeStoreFailure, "template storage failed", err)
	}
	switch se.Kind {
	case KindDuplicate:
		return &common.ClientError{
			Code:    common.CodeTemplateAlreadyExists,
			Message: fmt.Sprintf("%s already exists", se.Key),
			Err:     err,
		}
	case KindInvalidKey:
		return &common.ClientError{
			Code:    common.CodeInvalidDisplayName,
			Message: fmt.Sprintf("%s cannot be stored under that name", se.Key),
			Err:     err,
		}
	case KindReadOnly:
		return &common.ClientError{
			Code:    common.CodeSystemResourceReadOnly,
			Message: fmt.Sprintf("%s is a system resource and cannot be modified", se.Key),
			Err:     err,
		}
	case KindCorrupt:
		return common.NewServerError(common.CodeContentCorrupt, "stored template content is unreadable", err)
	case KindArity:
		return common.NewServerError(common.CodeContentArityMismatch, "stored template content has an unexpected shape", err)
	case KindOrgResolution:
		return common.NewServerError(common.CodeOrgResolutionFailed, "organization resolution failed", err)
	default:
		return common.NewServerError(common.CodeStoreFailure, "template storage failed", err)
	}
}

func nonNil(templates []*Template) []*Template {
	if templates == nil {
		return []*Template{}
	}
	return templates
}

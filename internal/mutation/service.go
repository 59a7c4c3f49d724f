// Package mutation performs the create, edit, cancel and delete actions of
// the console. Each action validates its input before calling the backend,
// then invalidates the affected resource and notifies the operator.
package mutation

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Gateway

import (
	"context"
	"log/slog"
	"strings"

	"trash4cash/internal/forms"
	"trash4cash/internal/gateway"
	"trash4cash/internal/notify"
	"trash4cash/internal/querycache"
	"trash4cash/internal/resource/models"
	"trash4cash/internal/resource/normalize"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

// Gateway is the subset of the backend used for writes.
type Gateway interface {
	Create(ctx context.Context, resource string, payload any) (gateway.RawRecord, error)
	Update(ctx context.Context, resource, id string, payload any) (gateway.RawRecord, error)
	CancelDropoff(ctx context.Context, id string) (gateway.RawRecord, error)
	Delete(ctx context.Context, resource, id string) error
}

// Service is safe for concurrent use.
type Service struct {
	gw       Gateway
	cache    *querycache.Cache
	notifier notify.Notifier
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(gw Gateway, cache *querycache.Cache, notifier notify.Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = notify.Nop
	}
	s := &Service{
		gw:       gw,
		cache:    cache,
		notifier: notifier,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateDropoff schedules a pickup or drop-off.
func (s *Service) CreateDropoff(ctx context.Context, form *forms.DropoffForm) (*models.Dropoff, error) {
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Create(ctx, models.KindDropoff.String(), form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create dropoff")
	}
	s.done(ctx, models.KindDropoff, "Dropoff created", "The dropoff has been scheduled")
	return echoed(ctx, s, models.KindDropoff, raw, normalize.Dropoff), nil
}

// CancelDropoff cancels a dropoff through its dedicated endpoint.
func (s *Service) CancelDropoff(ctx context.Context, id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeValidation, "dropoff id is required")
	}
	if _, err := s.gw.CancelDropoff(ctx, id); err != nil {
		return s.fail(ctx, err, "Failed to cancel dropoff")
	}
	s.done(ctx, models.KindDropoff, "Dropoff cancelled", "")
	return nil
}

// CreateWasteType adds a waste type; the payload goes out as multipart.
func (s *Service) CreateWasteType(ctx context.Context, form *forms.WasteTypeForm) (*models.WasteType, error) {
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Create(ctx, models.KindWasteType.String(), form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create waste type")
	}
	s.done(ctx, models.KindWasteType, "Waste type created", form.Name)
	return echoed(ctx, s, models.KindWasteType, raw, normalize.WasteType), nil
}

// UpdateWasteType edits a waste type.
func (s *Service) UpdateWasteType(ctx context.Context, id string, form *forms.WasteTypeUpdate) (*models.WasteType, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "waste type id is required")
	}
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Update(ctx, models.KindWasteType.String(), id, form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to update waste type")
	}
	s.done(ctx, models.KindWasteType, "Waste type updated", "")
	return echoed(ctx, s, models.KindWasteType, raw, normalize.WasteType), nil
}

// CreateWasteBank adds a collection point.
func (s *Service) CreateWasteBank(ctx context.Context, form *forms.WasteBankForm) (*models.WasteBank, error) {
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Create(ctx, models.KindWasteBank.String(), form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to create waste bank")
	}
	s.done(ctx, models.KindWasteBank, "Waste bank created", form.Name)
	return echoed(ctx, s, models.KindWasteBank, raw, normalize.WasteBank), nil
}

// UpdateWasteBank edits a collection point.
func (s *Service) UpdateWasteBank(ctx context.Context, id string, form *forms.WasteBankUpdate) (*models.WasteBank, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "waste bank id is required")
	}
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Update(ctx, models.KindWasteBank.String(), id, form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to update waste bank")
	}
	s.done(ctx, models.KindWasteBank, "Waste bank updated", "")
	return echoed(ctx, s, models.KindWasteBank, raw, normalize.WasteBank), nil
}

// UpdateProfile edits the operator's own user record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, form *forms.ProfileForm) (*models.User, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if err := s.check(ctx, form); err != nil {
		return nil, err
	}
	raw, err := s.gw.Update(ctx, models.KindUser.String(), userID, form)
	if err != nil {
		return nil, s.fail(ctx, err, "Failed to update profile")
	}
	s.done(ctx, models.KindUser, "Profile updated", "")
	return echoed(ctx, s, models.KindUser, raw, normalize.User), nil
}

// ChangePassword sets a new password on the operator's user record. The
// confirmation is checked here and never sent.
func (s *Service) ChangePassword(ctx context.Context, userID string, form *forms.PasswordForm) error {
	if userID == "" {
		return dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if err := s.check(ctx, form); err != nil {
		return err
	}
	if _, err := s.gw.Update(ctx, models.KindUser.String(), userID, form.Payload()); err != nil {
		return s.fail(ctx, err, "Failed to update password")
	}
	s.logger.InfoContext(ctx, "password changed", "user_id", userID)
	s.notifier.Notify(ctx, notify.Success("Password updated", ""))
	return nil
}

// Delete removes a record of any managed kind.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) error {
	if id == "" {
		return dErrors.New(dErrors.CodeValidation, "id is required")
	}
	label := kind.Label()
	if err := s.gw.Delete(ctx, kind.String(), id); err != nil {
		return s.fail(ctx, err, "Failed to delete "+label)
	}
	s.cache.Remove(querycache.DetailKey(kind, id))
	s.done(ctx, kind, capitalized(label)+" deleted", "")
	return nil
}

func (s *Service) check(ctx context.Context, form any) error {
	if err := httputil.PrepareRequest(form); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			err = dErrors.Reclassify(err, dErrors.CodeValidation, err.Error())
		}
		s.notifier.Notify(ctx, notify.Failure("Invalid input", err.Error()))
		return err
	}
	return nil
}

func (s *Service) fail(ctx context.Context, err error, title string) error {
	s.logger.WarnContext(ctx, "mutation failed", "action", title, "error", err)
	s.notifier.Notify(ctx, notify.Failure(title, gateway.Describe(err)))
	return dErrors.Reclassify(err, dErrors.CodeMutationFailed, title)
}

func (s *Service) done(ctx context.Context, kind models.Kind, title, description string) {
	s.cache.InvalidateResource(kind)
	s.logger.InfoContext(ctx, "mutation applied", "resource", kind.String(), "action", title)
	s.notifier.Notify(ctx, notify.Success(title, description))
}

// echoed normalizes the record the backend returned for a successful write.
// It is nil when the backend sent no record, or sent one that cannot be
// normalized; the latter is logged.
func echoed[T any](ctx context.Context, s *Service, kind models.Kind, raw gateway.RawRecord, normalizeFn func(gateway.RawRecord) (T, error)) *T {
	if len(raw) == 0 {
		return nil
	}
	rec, err := normalizeFn(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "backend echoed an unusable record",
			"resource", kind.String(),
			"error", err,
		)
		return nil
	}
	return &rec
}

func capitalized(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

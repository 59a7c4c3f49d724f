// Package auth keeps the operator's backend token behind a console session.
// The backend authenticates; this package only remembers the token, checks
// its expiry before use and drops it when the backend rejects it.
package auth

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authenticator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trash4cash/internal/forms"
	"trash4cash/internal/gateway"
	"trash4cash/internal/platform/metrics"
	"trash4cash/internal/platform/privacy"
	"trash4cash/internal/resource/models"
	"trash4cash/internal/resource/normalize"
	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

const DefaultSessionTTL = 24 * time.Hour

var (
	ErrNotLoggedIn    = dErrors.New(dErrors.CodeUnauthorized, "not logged in")
	ErrSessionExpired = dErrors.New(dErrors.CodeUnauthorized, "session expired, please log in again")
)

// Authenticator exchanges credentials for a backend token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*gateway.LoginResponse, error)
}

type Service struct {
	store      TokenStore
	authn      Authenticator
	sessionTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

// WithSessionTTL bounds sessions whose token carries no exp claim.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store TokenStore, authn Authenticator, opts ...Option) *Service {
	s := &Service{
		store:      store,
		authn:      authn,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Login validates the credentials, authenticates against the backend and
// stores a new session.
func (s *Service) Login(ctx context.Context, form *forms.LoginForm) (*Session, error) {
	if err := httputil.PrepareRequest(form); err != nil {
		s.metrics.IncrementLogins(metrics.LoginRejected)
		return nil, err
	}

	resp, err := s.authn.Login(ctx, form.Email, form.Password)
	if err != nil {
		if gateway.IsUnauthorized(err) || gateway.CategoryOf(err) == gateway.ErrorBadRequest {
			s.logger.WarnContext(ctx, "login rejected", "email", privacy.MaskEmail(form.Email))
			s.metrics.IncrementLogins(metrics.LoginRejected)
			return nil, dErrors.Reclassify(err, dErrors.CodeUnauthorized, "invalid email or password")
		}
		s.metrics.IncrementLogins(metrics.LoginFailed)
		return nil, dErrors.Reclassify(err, dErrors.CodeUnavailable, "login failed: "+gateway.Describe(err))
	}

	now := s.now()
	session := &Session{
		ID:        id.NewSessionID(),
		Token:     resp.Token,
		User:      loginUser(resp.User, form.Email),
		CreatedAt: now,
		ExpiresAt: TokenExpiry(resp.Token, now.Add(s.sessionTTL)),
	}
	if session.Expired(now) {
		s.metrics.IncrementLogins(metrics.LoginRejected)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "backend issued an expired token")
	}
	if err := s.store.Save(ctx, session); err != nil {
		s.metrics.IncrementLogins(metrics.LoginFailed)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}
	s.metrics.IncrementLogins(metrics.LoginSucceeded)

	s.logger.InfoContext(ctx, "operator logged in",
		"session_id", session.ID.String(),
		"user_id", session.User.ID,
		"email", privacy.MaskEmail(form.Email),
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// Resolve returns the live session for sessionID. An expired session is
// deleted and reported as unauthorized.
func (s *Service) Resolve(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	if sessionID.IsNil() {
		return nil, ErrNotLoggedIn
	}
	session, err := s.store.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if session.Expired(s.now()) {
		if err := s.store.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "failed to delete expired session", "session_id", sessionID.String(), "error", err)
		}
		return nil, ErrSessionExpired
	}
	return session, nil
}

// UpdateUser replaces the operator profile kept with the session, after the
// operator edited it.
func (s *Service) UpdateUser(ctx context.Context, sessionID id.SessionID, user models.User) error {
	session, err := s.Resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		user.Email = session.User.Email
	}
	session.User = user
	if err := s.store.Save(ctx, session); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}
	return nil
}

// Logout forgets the session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context, sessionID id.SessionID) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session")
	}
	s.metrics.IncrementLogouts()
	s.logger.InfoContext(ctx, "operator logged out", "session_id", sessionID.String())
	return nil
}

// TokenSource resolves the session's token before every backend request so
// an expired token is never sent.
func (s *Service) TokenSource(sessionID id.SessionID) gateway.TokenSource {
	return sessionToken{svc: s, id: sessionID}
}

type sessionToken struct {
	svc *Service
	id  id.SessionID
}

func (t sessionToken) Token(ctx context.Context) (string, error) {
	session, err := t.svc.Resolve(ctx, t.id)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature;
// the backend owns the key. Opaque tokens and tokens without exp yield fallback.
func TokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	return exp.Time
}

func loginUser(raw gateway.RawRecord, email string) models.User {
	if u, err := normalize.User(raw); err == nil {
		if u.Email == "" {
			u.Email = email
		}
		return u
	}
	return models.User{Email: email, Name: normalize.UnknownUser}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"trash4cash/internal/auth"
	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
	"trash4cash/pkg/platform/httputil"
)

// SessionHeader carries the console session id. A bearer Authorization
// header holding the session id is accepted as well.
const SessionHeader = "X-Session-ID"

// SessionResolver loads a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID id.SessionID) (*auth.Session, error)
}

type contextKeySession struct{}

// WithSession stores session in ctx.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, contextKeySession{}, session)
}

// GetSession retrieves the session stored by RequireSession.
func GetSession(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(contextKeySession{}).(*auth.Session)
	return session, ok && session != nil
}

func sessionIDFrom(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// RequireSession rejects requests without a live session with 401.
func RequireSession(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			raw := sessionIDFrom(r)
			if raw == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing session"))
				return
			}
			sessionID, err := id.ParseSessionID(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed session id", "request_id", requestID)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid session"))
				return
			}

			session, err := resolver.Resolve(ctx, sessionID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - session rejected",
					"error", err,
					"request_id", requestID,
				)
				if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
		})
	}
}

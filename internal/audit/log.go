package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"condominio.app/internal/auth"
	"condominio.app/internal/obs"
)

// Event names.
const (
	EventRegister            = "auth.register"
	EventLoginSucceeded      = "auth.login.succeeded"
	EventLoginFailed         = "auth.login.failed"
	EventPasswordChanged     = "auth.password.changed"
	EventAccountCreated      = "user.created"
	EventStatusChanged       = "user.status.changed"
	EventProfileUpdated      = "user.profile.updated"
	EventAccessDenied        = "authz.denied"
	EventFineCreated         = "fine.created"
	EventReservationCreated  = "reservation.created"
	EventReservationCanceled = "reservation.cancelled"
	EventAnnouncementCreated = "announcement.created"
)

type ctxKey struct{}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry through the request-scoped logger, which
// already carries the request and user ids. Without one it falls back to the
// process logger and adds them from ctx. Callers must not pass secrets in fields.
func LogEvent(ctx context.Context, event string, fields ...zap.Field) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	base := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
		zap.String("event_id", uuid.NewString()),
	}
	log, scoped := obs.Scoped(ctx)
	if !scoped {
		log = obs.L()
		if rid := RequestIDFromContext(ctx); rid != "" {
			base = append(base, obs.RequestID(rid))
		}
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			base = append(base, obs.UserID(userID))
		}
	}
	log.Named("audit").Info(event, append(base, fields...)...)
	return nil
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"condominio.app/internal/audit"
	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var errMissingBearer = errors.New("missing bearer token")

// requireAuth resolves the bearer token to the current identity. The role
// is read from the store on every request.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, codeInvalidToken, err.Error())
			return
		}
		ident, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		if st := stateFrom(r.Context()); st != nil {
			st.userID = ident.ID
		}
		ctx := auth.ContextWithIdentity(r.Context(), ident)
		ctx = auth.ContextWithToken(ctx, token)
		ctx = obs.WithLogger(ctx, obs.From(ctx).With(obs.UserID(ident.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize runs the access gate for the current identity. On denial it
// writes the 403 response and returns false.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, res auth.Resource, op auth.Operation) bool {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeInvalidToken, errMissingBearer.Error())
		return false
	}
	d := auth.Authorize(ident, res, op)
	if d.Allowed {
		obs.RecordDecision(string(res.Type), "allowed")
		return true
	}
	obs.RecordDecision(string(res.Type), d.Reason.String())
	_ = audit.LogEvent(r.Context(), audit.EventAccessDenied,
		zap.String("resource", string(res.Type)),
		zap.String("operation", string(op)),
		zap.String("reason", d.Reason.String()),
		zap.String("route", obs.RoutePattern(r)),
	)
	writeServiceError(w, r, d.Err())
	return false
}

// gate runs the role half of the access gate before any body decoding or
// store lookup. The returned scope tells the caller whether the ownership
// predicate still has to be checked against the loaded resource.
func (a *API) gate(w http.ResponseWriter, r *http.Request, res auth.ResourceType, op auth.Operation) (auth.Scope, bool) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeInvalidToken, errMissingBearer.Error())
		return auth.ScopeNone, false
	}
	scope := auth.Grant(ident.Role, res, op)
	if scope == auth.ScopeNone {
		return scope, a.authorize(w, r, auth.Resource{Type: res}, op)
	}
	return scope, true
}

// lookupFailed answers a failed load of a gated resource. Callers limited to
// their own resources get not_owner for missing rows so ids cannot be probed.
func (a *API) lookupFailed(w http.ResponseWriter, r *http.Request, err error, scope auth.Scope, res auth.ResourceType, op auth.Operation) {
	if scope == auth.ScopeOwn && errors.Is(err, condo.ErrNotFound) {
		a.authorize(w, r, auth.Resource{Type: res}, op)
		return
	}
	writeServiceError(w, r, err)
}

// canAdminister guards account administration on accounts holding role.
func (a *API) canAdminister(w http.ResponseWriter, r *http.Request, role auth.Role) bool {
	if auth.CanAdminister(currentIdentity(r), role) {
		return true
	}
	obs.RecordDecision(string(auth.ResourceAccount), auth.ReasonRoleNotPermitted.String())
	_ = audit.LogEvent(r.Context(), audit.EventAccessDenied,
		zap.String("resource", string(auth.ResourceAccount)),
		zap.String("target_role", role.String()),
		zap.String("reason", auth.ReasonRoleNotPermitted.String()),
		zap.String("route", obs.RoutePattern(r)),
	)
	writeServiceError(w, r, auth.ErrRoleNotPermitted)
	return false
}

// currentIdentity returns the identity stored by requireAuth.
func currentIdentity(r *http.Request) auth.Identity {
	ident, _ := auth.IdentityFromContext(r.Context())
	return ident
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingBearer
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

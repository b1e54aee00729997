package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"condominio.app/internal/audit"
	"condominio.app/internal/auth"
	"condominio.app/internal/obs"
)

type tokenUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"nombre_completo"`
	Role     string `json:"rol"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        tokenUser `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"nombre_completo"`
	Role     string `json:"rol,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func roleLabel(r auth.Role) string {
	label, _ := r.Label()
	return label
}

func newTokenUser(ident auth.Identity) tokenUser {
	return tokenUser{ID: ident.ID, Email: ident.Email, FullName: ident.FullName, Role: roleLabel(ident.Role)}
}

func newTokenResponse(s auth.Session) tokenResponse {
	return tokenResponse{
		AccessToken: s.Token,
		TokenType:   s.TokenType,
		ExpiresIn:   int64(s.ExpiresIn / time.Second),
		ExpiresAt:   s.ExpiresAt,
		User:        newTokenUser(s.Identity),
	}
}

// handleRegister creates a resident account. Elevated roles are created by
// an administrator through POST /usuarios.
func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	if strings.TrimSpace(req.Role) != "" {
		role, err := auth.LookupRole(req.Role)
		if err != nil {
			invalidInput(w, r, "unknown role")
			return
		}
		if role != auth.RoleResident {
			writeServiceError(w, r, auth.ErrRoleNotPermitted)
			return
		}
	}
	sess, err := a.auth.Register(r.Context(), auth.Registration{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     auth.RoleResident,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventRegister, zap.Int64("account_id", sess.Identity.ID))
	writeJSON(w, http.StatusCreated, newTokenResponse(sess))
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	a.login(w, r, req.Email, req.Password)
}

// handleTokenForm is the OAuth2 password-grant style variant of login.
func (a *API) handleTokenForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		invalidInput(w, r, "malformed form body")
		return
	}
	a.login(w, r, r.PostForm.Get("username"), r.PostForm.Get("password"))
}

func (a *API) login(w http.ResponseWriter, r *http.Request, email, password string) {
	sess, err := a.auth.Login(r.Context(), email, password)
	if err != nil {
		result := loginResult(err)
		obs.RecordLogin(result)
		_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, zap.String("reason", result))
		writeServiceError(w, r, err)
		return
	}
	obs.RecordLogin("success")
	ctx := auth.ContextWithIdentity(r.Context(), sess.Identity)
	_ = audit.LogEvent(ctx, audit.EventLoginSucceeded)
	writeJSON(w, http.StatusOK, newTokenResponse(sess))
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, auth.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTokenUser(currentIdentity(r)))
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	ident := currentIdentity(r)
	if err := a.auth.ChangePassword(r.Context(), ident.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPasswordChanged)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// handleCreateAccount lets an administrator create an account with any role.
func (a *API) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAccount}, auth.OpCreate) {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	role := auth.RoleResident
	if strings.TrimSpace(req.Role) != "" {
		var err error
		if role, err = auth.LookupRole(req.Role); err != nil {
			invalidInput(w, r, "unknown role")
			return
		}
	}
	if !a.canAdminister(w, r, role) {
		return
	}
	ident, err := a.auth.CreateAccount(r.Context(), auth.Registration{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventAccountCreated,
		zap.Int64("account_id", ident.ID), zap.String("role", roleLabel(ident.Role)))
	writeJSON(w, http.StatusCreated, newProfileView(ident, nil))
}

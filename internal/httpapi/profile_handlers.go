package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"condominio.app/internal/audit"
	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
)

type profileView struct {
	ID          int64           `json:"id"`
	Email       string          `json:"email"`
	FullName    string          `json:"nombre_completo"`
	Role        string          `json:"rol"`
	Active      bool            `json:"is_active"`
	NotifyEmail bool            `json:"notificaciones_email"`
	NotifyPush  bool            `json:"notificaciones_push"`
	Units       []condo.UnitRef `json:"viviendas"`
	LastLogin   *time.Time      `json:"last_login"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newProfileView(ident auth.Identity, units []condo.HousingUnit) profileView {
	v := profileView{
		ID:          ident.ID,
		Email:       ident.Email,
		FullName:    ident.FullName,
		Role:        roleLabel(ident.Role),
		Active:      ident.Active,
		NotifyEmail: ident.NotifyEmail,
		NotifyPush:  ident.NotifyPush,
		Units:       make([]condo.UnitRef, 0, len(units)),
		LastLogin:   ident.LastLogin,
		CreatedAt:   ident.CreatedAt,
	}
	for _, u := range units {
		v.Units = append(v.Units, condo.UnitRef{ID: u.ID, Number: u.Number, Condominium: u.CondominiumName})
	}
	return v
}

type profileUpdateRequest struct {
	FullName *string `json:"nombre_completo"`
	Email    *string `json:"email"`
}

type notificationsRequest struct {
	NotifyEmail *bool `json:"notificaciones_email"`
	NotifyPush  *bool `json:"notificaciones_push"`
}

type statusRequest struct {
	Active *bool `json:"is_active"`
}

func (a *API) profileTarget(w http.ResponseWriter, r *http.Request, op auth.Operation) (int64, bool) {
	userID, ok := pathID(r, "userID")
	if !ok {
		invalidInput(w, r, "invalid user id")
		return 0, false
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceProfile, OwnerID: userID}, op) {
		return 0, false
	}
	return userID, true
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.profileTarget(w, r, auth.OpRead)
	if !ok {
		return
	}
	ident, err := a.auth.Identity(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	units, err := a.condo.UnitsForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileView(ident, units))
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.profileTarget(w, r, auth.OpUpdate)
	if !ok {
		return
	}
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	a.applyProfileUpdate(w, r, userID, auth.ProfileUpdate{FullName: req.FullName, Email: req.Email})
}

func (a *API) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.profileTarget(w, r, auth.OpUpdate)
	if !ok {
		return
	}
	var req notificationsRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	a.applyProfileUpdate(w, r, userID, auth.ProfileUpdate{NotifyEmail: req.NotifyEmail, NotifyPush: req.NotifyPush})
}

func (a *API) applyProfileUpdate(w http.ResponseWriter, r *http.Request, userID int64, upd auth.ProfileUpdate) {
	ident, err := a.auth.UpdateProfile(r.Context(), userID, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !upd.Empty() {
		_ = audit.LogEvent(r.Context(), audit.EventProfileUpdated, zap.Int64("account_id", userID))
	}
	writeJSON(w, http.StatusOK, newProfileView(ident, nil))
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		invalidInput(w, r, "invalid user id")
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAccount, OwnerID: userID}, auth.OpUpdate) {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	if req.Active == nil {
		invalidInput(w, r, "is_active is required")
		return
	}
	if userID == currentIdentity(r).ID && !*req.Active {
		invalidInput(w, r, "cannot disable your own account")
		return
	}
	target, err := a.auth.Identity(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !a.canAdminister(w, r, target.Role) {
		return
	}
	ident, err := a.auth.SetActive(r.Context(), userID, *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventStatusChanged,
		zap.Int64("account_id", userID), zap.Bool("active", ident.Active))
	writeJSON(w, http.StatusOK, newProfileView(ident, nil))
}

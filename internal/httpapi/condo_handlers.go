package httpapi

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"condominio.app/internal/audit"
	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/stream"
)

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

// parseDate accepts an empty string as "not set".
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, raw, time.UTC)
}

type unitView struct {
	ID            int64  `json:"id"`
	Number        string `json:"numero_vivienda"`
	CondominiumID int64  `json:"condominio_id"`
	Condominium   string `json:"condominio"`
}

type expenseView struct {
	ID         int64     `json:"id"`
	UnitID     int64     `json:"vivienda_id"`
	UnitNumber string    `json:"vivienda_numero,omitempty"`
	Month      int       `json:"mes"`
	Year       int       `json:"ano"`
	Total      float64   `json:"monto_total"`
	Status     string    `json:"estado"`
	DueDate    *string   `json:"vencimiento"`
	CreatedAt  time.Time `json:"created_at"`
}

type fineView struct {
	ID          int64     `json:"id"`
	UnitID      int64     `json:"vivienda_id"`
	Unit        string    `json:"vivienda"`
	Amount      float64   `json:"monto"`
	Description string    `json:"descripcion"`
	AppliedOn   string    `json:"fecha_aplicada"`
	CreatedAt   time.Time `json:"created_at"`
}

type fineListView struct {
	Fines        []fineView `json:"multas"`
	Total        float64    `json:"total"`
	TotalPending float64    `json:"total_pendiente"`
}

type paymentView struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"usuario_id"`
	UserName      string    `json:"usuario_nombre"`
	Unit          string    `json:"vivienda"`
	Amount        float64   `json:"monto_pagado"`
	PaidAt        time.Time `json:"fecha_pago"`
	Method        string    `json:"metodo_pago"`
	ExpenseMonth  int       `json:"gasto_mes"`
	ExpenseYear   int       `json:"gasto_ano"`
	ExpenseStatus string    `json:"gasto_estado"`
}

type reservationView struct {
	ID            int64     `json:"id"`
	SpaceID       int64     `json:"espacio_id"`
	Space         string    `json:"espacio"`
	UserID        int64     `json:"usuario_id"`
	Start         time.Time `json:"inicio"`
	End           time.Time `json:"fin"`
	Amount        float64   `json:"monto_pago"`
	PaymentStatus string    `json:"estado_pago"`
	Status        string    `json:"estado"`
	CreatedAt     time.Time `json:"created_at"`
}

type announcementView struct {
	ID          int64     `json:"id"`
	Title       string    `json:"titulo"`
	Body        string    `json:"contenido"`
	Kind        string    `json:"tipo"`
	Author      string    `json:"autor"`
	PublishedOn string    `json:"fecha_publicacion"`
	ExpiresOn   *string   `json:"fecha_expiracion"`
	CreatedAt   time.Time `json:"created_at"`
}

type residentView struct {
	ID        int64           `json:"id"`
	FullName  string          `json:"nombre_completo"`
	Email     string          `json:"email"`
	Units     []condo.UnitRef `json:"viviendas"`
	LastLogin *time.Time      `json:"last_login"`
	CreatedAt time.Time       `json:"created_at"`
}

type delinquentView struct {
	UnitID          int64                   `json:"vivienda_id"`
	UnitNumber      string                  `json:"numero_vivienda"`
	Residents       []condo.ResidentContact `json:"residentes"`
	TotalOwed       float64                 `json:"total_adeudado"`
	PendingExpenses int                     `json:"gastos_pendientes"`
	PendingFines    int                     `json:"multas_pendientes"`
	DaysOverdue     int                     `json:"dias_atraso"`
	OldestDueDate   string                  `json:"fecha_vencimiento_mas_antigua"`
}

func newExpenseViews(es []condo.Expense) []expenseView {
	out := make([]expenseView, 0, len(es))
	for _, e := range es {
		out = append(out, expenseView{
			ID: e.ID, UnitID: e.UnitID, UnitNumber: e.UnitNumber,
			Month: e.Month, Year: e.Year, Total: e.Total, Status: e.Status,
			DueDate: formatDatePtr(e.DueDate), CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func newFineView(f condo.Fine) fineView {
	return fineView{
		ID: f.ID, UnitID: f.UnitID, Unit: f.UnitNumber, Amount: f.Amount,
		Description: f.Description, AppliedOn: formatDate(f.AppliedOn), CreatedAt: f.CreatedAt,
	}
}

func newFineList(sum condo.FineSummary) fineListView {
	v := fineListView{Fines: make([]fineView, 0, len(sum.Fines)), Total: sum.Total, TotalPending: sum.TotalPending}
	for _, f := range sum.Fines {
		v.Fines = append(v.Fines, newFineView(f))
	}
	return v
}

func newReservationView(r condo.Reservation) reservationView {
	return reservationView{
		ID: r.ID, SpaceID: r.SpaceID, Space: r.SpaceName, UserID: r.UserID,
		Start: r.Start, End: r.End, Amount: r.Amount,
		PaymentStatus: r.PaymentStatus, Status: r.Status, CreatedAt: r.CreatedAt,
	}
}

func newReservationViews(rs []condo.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newReservationView(r))
	}
	return out
}

func newAnnouncementView(a condo.Announcement) announcementView {
	author := a.AuthorName
	if author == "" {
		author = "Desconocido"
	}
	return announcementView{
		ID: a.ID, Title: a.Title, Body: a.Body, Kind: a.Kind, Author: author,
		PublishedOn: formatDate(a.PublishedOn), ExpiresOn: formatDatePtr(a.ExpiresOn), CreatedAt: a.CreatedAt,
	}
}

func (a *API) handleListUnits(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceHousingUnit}, auth.OpList) {
		return
	}
	units, err := a.condo.Units(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]unitView, 0, len(units))
	for _, u := range units {
		out = append(out, unitView{ID: u.ID, Number: u.Number, CondominiumID: u.CondominiumID, Condominium: u.CondominiumName})
	}
	writeJSON(w, http.StatusOK, map[string]any{"viviendas": out, "total": len(out)})
}

func (a *API) handleUnitExpenses(w http.ResponseWriter, r *http.Request) {
	unitID, ok := pathID(r, "unitID")
	if !ok {
		invalidInput(w, r, "invalid unit id")
		return
	}
	scope, ok := a.gate(w, r, auth.ResourceExpense, auth.OpRead)
	if !ok {
		return
	}
	unit, err := a.condo.Unit(r.Context(), unitID)
	if err != nil {
		a.lookupFailed(w, r, err, scope, auth.ResourceExpense, auth.OpRead)
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceExpense, ResidentIDs: unit.ResidentIDs}, auth.OpRead) {
		return
	}
	expenses, err := a.condo.UnitExpenses(r.Context(), unitID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseViews(expenses))
}

// ownedUserID parses {userID} and gates op on res owned by that user.
func (a *API) ownedUserID(w http.ResponseWriter, r *http.Request, res auth.ResourceType, op auth.Operation) (int64, bool) {
	userID, ok := pathID(r, "userID")
	if !ok {
		invalidInput(w, r, "invalid user id")
		return 0, false
	}
	if !a.authorize(w, r, auth.Resource{Type: res, OwnerID: userID}, op) {
		return 0, false
	}
	return userID, true
}

func (a *API) handleUserExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.ownedUserID(w, r, auth.ResourceExpense, auth.OpRead)
	if !ok {
		return
	}
	expenses, err := a.condo.UserExpenses(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newExpenseViews(expenses))
}

func (a *API) handleUserFines(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.ownedUserID(w, r, auth.ResourceFine, auth.OpRead)
	if !ok {
		return
	}
	sum, err := a.condo.UserFines(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFineList(sum))
}

func (a *API) handleAllFines(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceFine}, auth.OpList) {
		return
	}
	sum, err := a.condo.AllFines(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFineList(sum))
}

type createFineRequest struct {
	UnitID      int64   `json:"vivienda_id"`
	Amount      float64 `json:"monto"`
	Description string  `json:"descripcion"`
	AppliedOn   string  `json:"fecha_aplicada,omitempty"`
}

func (a *API) handleCreateFine(w http.ResponseWriter, r *http.Request) {
	scope, ok := a.gate(w, r, auth.ResourceFine, auth.OpCreate)
	if !ok {
		return
	}
	var req createFineRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	if req.UnitID <= 0 {
		invalidInput(w, r, "vivienda_id is required")
		return
	}
	applied, err := parseDate(req.AppliedOn)
	if err != nil {
		invalidInput(w, r, "fecha_aplicada must be YYYY-MM-DD")
		return
	}
	unit, err := a.condo.Unit(r.Context(), req.UnitID)
	if err != nil {
		a.lookupFailed(w, r, err, scope, auth.ResourceFine, auth.OpCreate)
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceFine, ResidentIDs: unit.ResidentIDs}, auth.OpCreate) {
		return
	}
	fine, err := a.condo.CreateFine(r.Context(), condo.NewFine{
		UnitID:      req.UnitID,
		Amount:      req.Amount,
		Description: req.Description,
		AppliedOn:   applied,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventFineCreated,
		zap.Int64("fine_id", fine.ID), zap.Int64("unit_id", fine.UnitID), zap.Float64("amount", fine.Amount))
	writeJSON(w, http.StatusCreated, newFineView(fine))
}

func (a *API) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.ownedUserID(w, r, auth.ResourcePayment, auth.OpRead)
	if !ok {
		return
	}
	b, err := a.condo.Breakdown(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	unitIDs := b.UnitIDs
	if unitIDs == nil {
		unitIDs = []int64{}
	}
	fines := make([]fineView, 0, len(b.Fines))
	for _, f := range b.Fines {
		fines = append(fines, newFineView(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"viviendas":      unitIDs,
		"cargo_fijo_uf":  b.FixedChargeUF,
		"gastos_comunes": newExpenseViews(b.Expenses),
		"multas":         fines,
		"reservas":       newReservationViews(b.Reservations),
	})
}

func (a *API) handleAllPayments(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourcePayment}, auth.OpList) {
		return
	}
	sum, err := a.condo.Payments(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]paymentView, 0, len(sum.Payments))
	for _, p := range sum.Payments {
		out = append(out, paymentView{
			ID: p.ID, UserID: p.UserID, UserName: p.UserName, Unit: p.UnitNumber,
			Amount: p.Amount, PaidAt: p.PaidAt, Method: p.Method,
			ExpenseMonth: p.ExpenseMonth, ExpenseYear: p.ExpenseYear, ExpenseStatus: p.ExpenseStatus,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pagos": out, "total": sum.Count, "total_monto": sum.TotalAmount})
}

func (a *API) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	self := currentIdentity(r).ID
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceReservation, OwnerID: self}, auth.OpRead) {
		return
	}
	rs, err := a.condo.UserReservations(r.Context(), self)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservas": newReservationViews(rs), "total": len(rs)})
}

func (a *API) handleAllReservations(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceReservation}, auth.OpList) {
		return
	}
	rs, err := a.condo.AllReservations(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservas": newReservationViews(rs), "total": len(rs)})
}

type createReservationRequest struct {
	SpaceID int64     `json:"espacio_id"`
	UserID  int64     `json:"usuario_id,omitempty"`
	Start   time.Time `json:"inicio"`
	End     time.Time `json:"fin"`
	Amount  float64   `json:"monto_pago"`
}

// handleCreateReservation books a space for the caller, or for usuario_id
// when the caller's role may act on other accounts.
func (a *API) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.gate(w, r, auth.ResourceReservation, auth.OpCreate); !ok {
		return
	}
	var req createReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	owner := req.UserID
	if owner == 0 {
		owner = currentIdentity(r).ID
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceReservation, OwnerID: owner}, auth.OpCreate) {
		return
	}
	res, err := a.condo.Reserve(r.Context(), condo.NewReservation{
		SpaceID: req.SpaceID,
		UserID:  owner,
		Start:   req.Start,
		End:     req.End,
		Amount:  req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventReservationCreated,
		zap.Int64("reservation_id", res.ID), zap.Int64("space_id", res.SpaceID), zap.Int64("owner_id", res.UserID))
	writeJSON(w, http.StatusCreated, newReservationView(res))
}

func (a *API) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "reservationID")
	if !ok {
		invalidInput(w, r, "invalid reservation id")
		return
	}
	scope, ok := a.gate(w, r, auth.ResourceReservation, auth.OpDelete)
	if !ok {
		return
	}
	existing, err := a.condo.Reservation(r.Context(), id)
	if err != nil {
		a.lookupFailed(w, r, err, scope, auth.ResourceReservation, auth.OpDelete)
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceReservation, OwnerID: existing.UserID}, auth.OpDelete) {
		return
	}
	res, err := a.condo.CancelReservation(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventReservationCanceled,
		zap.Int64("reservation_id", res.ID), zap.Int64("owner_id", res.UserID))
	writeJSON(w, http.StatusOK, newReservationView(res))
}

func (a *API) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	condoID, ok := pathID(r, "condoID")
	if !ok {
		invalidInput(w, r, "invalid condominium id")
		return
	}
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAnnouncement}, auth.OpRead) {
		return
	}
	list, err := a.condo.Announcements(r.Context(), condoID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAnnouncements(w, list)
}

// handleDefaultAnnouncements serves the announcements of the first
// condominium, for clients that do not know their condominium id.
func (a *API) handleDefaultAnnouncements(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAnnouncement}, auth.OpRead) {
		return
	}
	list, err := a.condo.DefaultAnnouncements(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAnnouncements(w, list)
}

func writeAnnouncements(w http.ResponseWriter, list []condo.Announcement) {
	out := make([]announcementView, 0, len(list))
	for _, an := range list {
		out = append(out, newAnnouncementView(an))
	}
	writeJSON(w, http.StatusOK, map[string]any{"anuncios": out, "total": len(out)})
}

type createAnnouncementRequest struct {
	CondominiumID int64  `json:"condominio_id"`
	Title         string `json:"titulo"`
	Body          string `json:"contenido"`
	Kind          string `json:"tipo,omitempty"`
	PublishedOn   string `json:"fecha_publicacion,omitempty"`
	ExpiresOn     string `json:"fecha_expiracion,omitempty"`
}

func (a *API) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceAnnouncement}, auth.OpCreate) {
		return
	}
	var req createAnnouncementRequest
	if err := decodeJSON(r, &req); err != nil {
		invalidInput(w, r, err.Error())
		return
	}
	published, err := parseDate(req.PublishedOn)
	if err != nil {
		invalidInput(w, r, "fecha_publicacion must be YYYY-MM-DD")
		return
	}
	expires, err := parseDate(req.ExpiresOn)
	if err != nil {
		invalidInput(w, r, "fecha_expiracion must be YYYY-MM-DD")
		return
	}
	na := condo.NewAnnouncement{
		CondominiumID: req.CondominiumID,
		AuthorID:      currentIdentity(r).ID,
		Title:         req.Title,
		Body:          req.Body,
		Kind:          req.Kind,
		PublishedOn:   published,
	}
	if !expires.IsZero() {
		na.ExpiresOn = &expires
	}
	an, err := a.condo.PublishAnnouncement(r.Context(), na)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if an.AuthorName == "" {
		an.AuthorName = currentIdentity(r).FullName
	}
	_ = audit.LogEvent(r.Context(), audit.EventAnnouncementCreated,
		zap.Int64("announcement_id", an.ID), zap.Int64("condominium_id", an.CondominiumID))
	view := newAnnouncementView(an)
	a.events.Publish(stream.Event{Kind: stream.KindAnnouncement, CondominiumID: an.CondominiumID, Data: view})
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleResidents(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceResident}, auth.OpList) {
		return
	}
	residents, err := a.condo.Residents(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]residentView, 0, len(residents))
	for _, res := range residents {
		units := res.Units
		if units == nil {
			units = []condo.UnitRef{}
		}
		out = append(out, residentView{
			ID: res.ID, FullName: res.FullName, Email: res.Email,
			Units: units, LastLogin: res.LastLogin, CreatedAt: res.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"residentes": out, "total": len(out)})
}

func (a *API) handleDelinquency(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.Resource{Type: auth.ResourceDelinquency}, auth.OpList) {
		return
	}
	report, err := a.condo.Delinquency(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]delinquentView, 0, len(report.Units))
	for _, u := range report.Units {
		residents := u.Residents
		if residents == nil {
			residents = []condo.ResidentContact{}
		}
		out = append(out, delinquentView{
			UnitID: u.UnitID, UnitNumber: u.UnitNumber, Residents: residents,
			TotalOwed: u.TotalOwed, PendingExpenses: u.PendingExpenses, PendingFines: u.PendingFines,
			DaysOverdue: u.DaysOverdue, OldestDueDate: formatDate(u.OldestDueDate),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"viviendas_morosas": out,
		"total_viviendas":   len(out),
		"total_morosidad":   report.TotalOwed,
	})
}

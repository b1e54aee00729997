package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/obs"
	"condominio.app/internal/ratelimit"
	"condominio.app/internal/stream"
)

const serviceName = "condo-api"

// ReadyProbe is a simple readiness check (pings the database when set).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Auth         *auth.Service
	Condo        *condo.Service
	Ready        readinessChecker
	LoginLimiter ratelimit.Limiter
	// Events receives announcement notifications; New creates one when nil.
	Events       *stream.Stream
	Logger       *zap.Logger
	Version      string
	CORSOrigins  []string
	MaxBodyBytes int64

	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// API is the HTTP layer.
type API struct {
	router  chi.Router
	auth    *auth.Service
	condo   *condo.Service
	ready   readinessChecker
	limiter ratelimit.Limiter
	events  *stream.Stream
	log     *zap.Logger
	version string
	now     func() time.Time
}

func New(d Deps) (*API, error) {
	if d.Auth == nil || d.Condo == nil {
		return nil, errors.New("httpapi: auth and condo services are required")
	}
	a := &API{
		auth:    d.Auth,
		condo:   d.Condo,
		ready:   d.Ready,
		limiter: d.LoginLimiter,
		events:  d.Events,
		log:     d.Logger,
		version: d.Version,
		now:     time.Now,
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.events == nil {
		a.events = stream.New(0)
	}
	if a.log == nil {
		a.log = obs.L()
	}
	proxies, err := ParseTrustedProxies(d.TrustedProxies)
	if err != nil {
		return nil, err
	}
	maxBody := d.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(RealIP(proxies), RequestID(a.log), Logging, Recoverer, obs.Instrument, SecurityHeaders, CORS(d.CORSOrigins), MaxBodyBytes(maxBody))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(RateLimit(a.limiter, "register")).Post("/register", a.handleRegister)
			r.With(RateLimit(a.limiter, "login")).Post("/login", a.handleLogin)
			r.With(RateLimit(a.limiter, "login")).Post("/token", a.handleTokenForm)
			r.Group(func(r chi.Router) {
				r.Use(a.requireAuth)
				r.Get("/me", a.handleMe)
				r.Put("/password", a.handleChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/perfil/{userID}", a.handleGetProfile)
			r.Put("/perfil/{userID}", a.handleUpdateProfile)
			r.Put("/perfil/{userID}/notificaciones", a.handleUpdateNotifications)

			r.Post("/usuarios", a.handleCreateAccount)
			r.Put("/usuarios/{userID}/estado", a.handleSetStatus)

			r.Get("/viviendas", a.handleListUnits)
			r.Get("/gastos/vivienda/{unitID}", a.handleUnitExpenses)
			r.Get("/gastos/usuario/{userID}", a.handleUserExpenses)

			r.Get("/multas/residente/{userID}", a.handleUserFines)
			r.Get("/multas/todas", a.handleAllFines)
			r.Post("/multas", a.handleCreateFine)

			r.Get("/pagos/residente/{userID}", a.handleBreakdown)
			r.Get("/pagos/todos", a.handleAllPayments)

			r.Get("/reservas/mias", a.handleMyReservations)
			r.Get("/reservas", a.handleAllReservations)
			r.Post("/reservas", a.handleCreateReservation)
			r.Delete("/reservas/{reservationID}", a.handleCancelReservation)

			r.Get("/anuncios/activos", a.handleDefaultAnnouncements)
			r.Get("/anuncios/condominio/{condoID}", a.handleAnnouncements)
			r.Get("/anuncios/condominio/{condoID}/stream", a.handleAnnouncementStream)
			r.Post("/anuncios", a.handleCreateAnnouncement)

			r.Get("/residentes", a.handleResidents)
			r.Get("/morosidad", a.handleDelinquency)
		})
	})

	a.router = r
	return a, nil
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.From(r.Context()).Warn("readiness check failed", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "not ready")
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   a.now().UTC().Format(time.RFC3339),
	})
}

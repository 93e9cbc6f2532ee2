// Package httpapi is the HTTP surface of the service: auth endpoints,
// the generation flows, profile routes and operational probes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"linguacode/internal/audit"
	"linguacode/internal/history"
	"linguacode/internal/identity"
	"linguacode/internal/obs"
	"linguacode/internal/orchestrator"
	"linguacode/internal/session"
)

// ReadyProbe checks the persistence layer before declaring readiness.
type ReadyProbe struct {
	Check func(ctx context.Context) error
}

func (rp ReadyProbe) Ready(ctx context.Context) error {
	if rp.Check == nil {
		return nil
	}
	return rp.Check(ctx)
}

// Options carry the collaborators and policy knobs for the API.
type Options struct {
	Users    *identity.Service
	Sessions *session.Manager
	History  *history.Ledger
	Flows    *orchestrator.Service
	Ready    ReadyProbe
	Version  string

	// RequireAuth gates the generation and profile routes. The auth
	// endpoints and probes are always public.
	RequireAuth bool

	RateRPS   float64
	RateBurst int
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	users    *identity.Service
	sessions *session.Manager
	history  *history.Ledger
	flows    *orchestrator.Service
	ready    ReadyProbe
	version  string
	gated    bool

	rateRPS   float64
	rateBurst int
}

func New(opts Options) *API {
	a := &API{
		mux:       http.NewServeMux(),
		users:     opts.Users,
		sessions:  opts.Sessions,
		history:   opts.History,
		flows:     opts.Flows,
		ready:     opts.Ready,
		version:   opts.Version,
		gated:     opts.RequireAuth,
		rateRPS:   opts.RateRPS,
		rateBurst: opts.RateBurst,
	}

	a.mux.HandleFunc("/healthz", a.healthz)
	a.mux.HandleFunc("/readyz", a.readyz)
	a.mux.Handle("/metrics", obs.Handler())

	a.route("/signup", false, a.handleSignup)
	a.route("/login", false, a.handleLogin)
	a.route("/refresh-token", false, a.handleRefresh)

	a.route("/history", true, a.handleHistory)
	a.route("/user", true, a.handleUser)
	a.route("/process", true, a.handleProcess)
	a.route("/generate_app_plan", true, a.handleAppPlan)
	a.route("/generate-code-from-plan", true, a.handleCodeFromPlan)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	return a
}

// route declares one endpoint with its auth requirement so the gate is
// visible at registration, not inferred from a path list.
func (a *API) route(path string, requiresAuth bool, h http.HandlerFunc) {
	if requiresAuth && a.gated {
		a.mux.Handle(path, a.withAuth(h))
		return
	}
	a.mux.HandleFunc(path, h)
}

// Handler assembles the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.rateRPS)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "linguacode-api",
		"version": a.version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

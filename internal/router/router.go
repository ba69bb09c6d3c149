package router

import (
	"net/http"

	"github.com/finia/backend/internal/auth"
	"github.com/finia/backend/internal/dashboard"
	"github.com/finia/backend/internal/handlers"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

type Config struct {
	Auth      *auth.Handler
	Dashboard *dashboard.Handler
	Webhook   *handlers.WebhookHandler
	// Analyze is optional; the route is not mounted when nil.
	Analyze *handlers.AnalyzeHandler

	Session   Middleware
	Signature Middleware
}

// New returns an http.Handler serving the webhook, the access link exchange
// and the dashboard API under /api/v1.
func New(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /whatsapp/webhook", cfg.Webhook.Verify)
	mux.Handle("POST /whatsapp/webhook", cfg.Signature(http.HandlerFunc(cfg.Webhook.Receive)))

	mux.HandleFunc("GET /acesso/{token}", cfg.Auth.Exchange)

	base := "/api/v1"
	session := func(h http.HandlerFunc) http.Handler { return cfg.Session(h) }
	mux.Handle("GET "+base+"/account/me", session(cfg.Dashboard.GetMe))
	mux.Handle("GET "+base+"/transactions", session(cfg.Dashboard.ListTransactions))
	mux.Handle("GET "+base+"/summary", session(cfg.Dashboard.GetSummary))
	mux.Handle("GET "+base+"/tasks", session(cfg.Dashboard.ListTasks))
	mux.Handle("PATCH "+base+"/tasks/{id}", session(cfg.Dashboard.UpdateTask))

	if cfg.Analyze != nil {
		mux.HandleFunc("POST /api/ia/analyze", cfg.Analyze.Analyze)
	}
	return mux
}

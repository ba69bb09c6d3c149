package main

import (
	"log/slog"
	"net/http"

	"github.com/finia/backend/internal/app"
	"github.com/finia/backend/internal/auth"
	"github.com/finia/backend/internal/config"
	"github.com/finia/backend/internal/dashboard"
	"github.com/finia/backend/internal/handlers"
	"github.com/finia/backend/internal/middleware"
	"github.com/finia/backend/internal/router"
)

// buildRouter mounts every HTTP route.
// Webhook POST: VerifySignature -> Receive (enqueue, 200).
// Dashboard: SessionAuth -> handler.
func buildRouter(cfg config.Config, core *app.Core, queue handlers.Enqueuer, logger *slog.Logger) http.Handler {
	rc := router.Config{
		Auth:      auth.NewHandler(core.Auth, logger),
		Dashboard: dashboard.NewHandler(core.Ledger, core.Tasks, core.Resolver, logger),
		Webhook: &handlers.WebhookHandler{
			VerifyToken: cfg.WhatsApp.VerifyToken,
			Queue:       queue,
			Logger:      logger,
		},
		Session:   middleware.SessionAuth(core.Auth, core.Accounts),
		Signature: middleware.VerifySignature(cfg.WhatsApp.AppSecret),
	}
	if cfg.AnalyzeEnabled {
		rc.Analyze = &handlers.AnalyzeHandler{Processor: core.Processor, Composer: core.Composer, Logger: logger}
	}
	return router.New(rc)
}

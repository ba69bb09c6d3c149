package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finia/backend/internal/auth"
	"github.com/finia/backend/internal/dashboard"
	"github.com/finia/backend/internal/execution"
	"github.com/finia/backend/internal/handlers"
	"github.com/finia/backend/internal/middleware"
)

type nopQueue struct{ n int }

func (q *nopQueue) Enqueue(context.Context, execution.ProcessMessageArgs) (bool, error) {
	q.n++
	return true, nil
}

func deny(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func newTestRouter(q *nopQueue) http.Handler {
	return New(Config{
		Auth:      auth.NewHandler(nil, nil),
		Dashboard: dashboard.NewHandler(nil, nil, nil, nil),
		Webhook:   &handlers.WebhookHandler{VerifyToken: "v", Queue: q, Logger: slog.Default()},
		Session:   deny,
		Signature: middleware.VerifySignature("app-secret"),
	})
}

func TestRouter_DashboardRequiresSession(t *testing.T) {
	h := newTestRouter(&nopQueue{})
	for _, target := range []string{"/api/v1/account/me", "/api/v1/transactions", "/api/v1/tasks", "/api/v1/summary"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
	}
}

func TestRouter_WebhookSignature(t *testing.T) {
	q := &nopQueue{}
	h := newTestRouter(q)
	body := `{"entry":[{"changes":[{"value":{"messages":[{"id":"m1","from":"5511999998888","type":"text","text":{"body":"oi"}}]}}]}]}`

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized || q.n != 0 {
		t.Fatalf("unsigned: expected 401 and no job, got %d and %d jobs", rec.Code, q.n)
	}

	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, middleware.Sign("app-secret", []byte(body)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || q.n != 1 {
		t.Fatalf("signed: expected 200 and one job, got %d and %d jobs", rec.Code, q.n)
	}
}

func TestRouter_AnalyzeMountedOnlyWhenSet(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&nopQueue{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ia/analyze", strings.NewReader("{}")))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

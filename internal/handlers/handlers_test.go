package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/finia/backend/internal/execution"
	"github.com/finia/backend/internal/reply"
	"github.com/finia/backend/internal/services"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type memQueue struct {
	mu   sync.Mutex
	jobs map[string]execution.ProcessMessageArgs
	err  error
}

func newMemQueue() *memQueue { return &memQueue{jobs: map[string]execution.ProcessMessageArgs{}} }

func (q *memQueue) Enqueue(_ context.Context, args execution.ProcessMessageArgs) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	if _, ok := q.jobs[args.MessageID]; ok {
		return false, nil
	}
	q.jobs[args.MessageID] = args
	return true, nil
}

type stubProcessor struct {
	in services.Inbound
}

func (s *stubProcessor) Process(_ context.Context, in services.Inbound) *services.Result {
	s.in = in
	return &services.Result{Kind: services.ResultLedgerInserted}
}

type stubComposer struct{}

func (stubComposer) Compose(_ context.Context, _ *services.Result) reply.Reply {
	return reply.Reply{Text: "✅ *Registrado com sucesso!*", Image: &reply.Image{Caption: "📊"}}
}

const webhookBody = `{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{
  "contacts":[{"wa_id":"551199998888","profile":{"name":"Ana"}}],
  "messages":[{"id":"wamid.1","from":"551199998888","type":"text","text":{"body":"Gastei 50 no mercado"}}]}}]}]}`

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

func TestWebhookVerify(t *testing.T) {
	h := &WebhookHandler{VerifyToken: "s3cret", Logger: slog.Default()}

	cases := []struct {
		name  string
		query string
		code  int
		body  string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=42", http.StatusOK, "42"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=s3cret&hub.challenge=42", http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Verify(rec, httptest.NewRequest(http.MethodGet, "/whatsapp/webhook?"+tc.query, nil))
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Errorf("expected challenge %q, got %q", tc.body, rec.Body.String())
			}
		})
	}
}

func TestWebhookReceive_EnqueuesOnce(t *testing.T) {
	q := newMemQueue()
	h := &WebhookHandler{Queue: q, Logger: slog.Default()}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.Receive(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(webhookBody)))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, rec.Code)
		}
	}
	if len(q.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(q.jobs))
	}
	job := q.jobs["wamid.1"]
	if job.Phone != "+5511999998888" || job.Name != "Ana" || job.Text != "Gastei 50 no mercado" {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestWebhookReceive_Errors(t *testing.T) {
	q := newMemQueue()
	h := &WebhookHandler{Queue: q, Logger: slog.Default()}

	rec := httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: expected 400, got %d", rec.Code)
	}

	q.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(webhookBody)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("enqueue failure: expected 500, got %d", rec.Code)
	}

	// Status notifications carry no messages and are acknowledged.
	q.err = nil
	rec = httptest.NewRecorder()
	h.Receive(rec, httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(`{"entry":[{"changes":[{"value":{"statuses":[{}]}}]}]}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("status update: expected 200, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// Analyze
// ---------------------------------------------------------------------------

func TestAnalyze(t *testing.T) {
	proc := &stubProcessor{}
	h := &AnalyzeHandler{Processor: proc, Composer: stubComposer{}, Logger: slog.Default()}

	rec := httptest.NewRecorder()
	h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/ia/analyze", strings.NewReader(`{"phone":"55 11 9999-8888","message":"Gastei 50 no mercado"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp analyzeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result != "ledger_inserted" || !strings.Contains(resp.Reply, "Registrado") || resp.ImageCaption != "📊" {
		t.Errorf("unexpected response %+v", resp)
	}
	if proc.in.Phone != "+5511999998888" {
		t.Errorf("phone not normalized: %q", proc.in.Phone)
	}
}

func TestAnalyze_BadRequest(t *testing.T) {
	h := &AnalyzeHandler{Processor: &stubProcessor{}, Composer: stubComposer{}, Logger: slog.Default()}
	for _, body := range []string{"nope", `{"phone":"","message":"oi"}`, `{"phone":"5511999998888","message":"  "}`} {
		rec := httptest.NewRecorder()
		h.Analyze(rec, httptest.NewRequest(http.MethodPost, "/api/ia/analyze", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/finia/backend/internal/execution"
	"github.com/finia/backend/internal/whatsapp"
)

// Enqueuer hands a message to the background worker. It reports false when
// the job already existed.
type Enqueuer interface {
	Enqueue(ctx context.Context, args execution.ProcessMessageArgs) (bool, error)
}

// WebhookHandler serves /whatsapp/webhook.
type WebhookHandler struct {
	VerifyToken string
	Queue       Enqueuer
	Logger      *slog.Logger
}

// Verify handles GET: Meta's subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.VerifyToken == "" || q.Get("hub.verify_token") != h.VerifyToken {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// Receive handles POST: every text or audio message becomes a job and the
// request is acknowledged at once. A failed enqueue answers 500 so Meta
// delivers the notification again.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload whatsapp.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	for _, m := range payload.Messages() {
		inserted, err := h.Queue.Enqueue(r.Context(), execution.ProcessMessageArgs{
			MessageID: m.ID,
			Phone:     m.Phone,
			Name:      m.Name,
			Text:      m.Text,
			AudioID:   m.AudioID,
			AudioMIME: m.AudioMIME,
		})
		if err != nil {
			h.Logger.Error("enqueue message failed", "message_id", m.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		if !inserted {
			h.Logger.Info("message already queued", "message_id", m.ID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

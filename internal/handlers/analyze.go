package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finia/backend/internal/reply"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/whatsapp"
)

type Processor interface {
	Process(ctx context.Context, in services.Inbound) *services.Result
}

type Composer interface {
	Compose(ctx context.Context, res *services.Result) reply.Reply
}

// AnalyzeHandler runs the pipeline synchronously and returns the reply
// instead of sending it.
type AnalyzeHandler struct {
	Processor Processor
	Composer  Composer
	Logger    *slog.Logger
}

type analyzeRequest struct {
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

type analyzeResponse struct {
	Result       string `json:"result"`
	Reply        string `json:"reply"`
	ImageCaption string `json:"image_caption,omitempty"`
}

// Analyze handles POST /api/ia/analyze.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	phone := whatsapp.NormalizePhone(req.Phone)
	if phone == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, `{"error":"phone and message are required"}`, http.StatusBadRequest)
		return
	}
	res := h.Processor.Process(r.Context(), services.Inbound{
		Phone:     phone,
		Name:      req.Name,
		MessageID: req.MessageID,
		Text:      req.Message,
	})
	out := h.Composer.Compose(r.Context(), res)
	h.Logger.Info("analyze", "phone", phone, "result", res.Kind.String())

	resp := analyzeResponse{Result: res.Kind.String(), Reply: out.Text}
	if out.Image != nil {
		resp.ImageCaption = out.Image.Caption
	}
	writeJSON(w, http.StatusOK, resp)
}

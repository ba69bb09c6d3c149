package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type SessionResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// Exchange handles GET /acesso/{token}: a valid link is burned and traded
// for a dashboard session token.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, accountID, err := h.svc.Exchange(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, ErrInvalidLink) {
			http.Error(w, `{"error":"invalid or expired link"}`, http.StatusUnauthorized)
			return
		}
		h.log.Error("access link exchange failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(SessionResponse{Token: token, AccountID: accountID.String()})
}

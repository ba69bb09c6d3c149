// Package dashboard serves the web panel's REST API. Every route runs behind
// middleware.SessionAuth.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finia/backend/internal/ledger"
	"github.com/finia/backend/internal/middleware"
	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/temporal"
)

const dateLayout = "2006-01-02"

type LedgerReader interface {
	Entries(ctx context.Context, f ledger.Filter) ([]*models.LedgerEntry, error)
	Summarize(ctx context.Context, accountID uuid.UUID, p models.Period, dir *models.Direction) (*ledger.Summary, error)
}

type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, status *models.TaskStatus) ([]*models.Task, error)
	UpdateStatus(ctx context.Context, accountID, id uuid.UUID, status models.TaskStatus) error
}

type Handler struct {
	ledger   LedgerReader
	tasks    TaskStore
	resolver *temporal.Resolver
	log      *slog.Logger
}

func NewHandler(ledger LedgerReader, tasks TaskStore, resolver *temporal.Resolver, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ledger: ledger, tasks: tasks, resolver: resolver, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                 acc.ID,
		"phone":              acc.Phone,
		"name":               acc.Name,
		"plan":               acc.Plan,
		"trial_expires_at":   acc.TrialExpiresAt,
		"premium_expires_at": acc.PremiumExpiresAt,
		"active":             services.Authorized(acc, h.resolver.Now()),
		"created_at":         acc.CreatedAt,
	})
}

// GET /api/v1/transactions?from=YYYY-MM-DD&to=YYYY-MM-DD&type=IN|OUT
//
// Both bounds are local calendar days, inclusive. Without them the current
// month is listed.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	p, err := h.period(r)
	if err != nil {
		http.Error(w, `{"error":"invalid date, use YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	f := ledger.Filter{AccountID: acc.ID, From: p.Start, To: p.End}
	if v := r.URL.Query().Get("type"); v != "" {
		dir, err := models.ParseDirection(v)
		if err != nil {
			http.Error(w, `{"error":"type must be IN or OUT"}`, http.StatusBadRequest)
			return
		}
		f.Direction = &dir
	}
	entries, err := h.ledger.Entries(r.Context(), f)
	if err != nil {
		h.log.Error("list transactions failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/summary?from&to
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	p, err := h.period(r)
	if err != nil {
		http.Error(w, `{"error":"invalid date, use YYYY-MM-DD"}`, http.StatusBadRequest)
		return
	}
	s, err := h.ledger.Summarize(r.Context(), acc.ID, p, nil)
	if err != nil {
		h.log.Error("summary failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if s.Categories == nil {
		s.Categories = []models.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":       p.Start,
		"to":         p.End,
		"count":      s.Count,
		"total_in":   s.TotalIn,
		"total_out":  s.TotalOut,
		"balance":    s.Balance,
		"categories": s.Categories,
	})
}

// period reads from/to as local days. Missing bounds default to the
// current month.
func (h *Handler) period(r *http.Request) (models.Period, error) {
	loc := h.resolver.Location()
	now := h.resolver.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, -1)
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return models.Period{}, err
		}
		start = d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return models.Period{}, err
		}
		end = d
	}
	if end.Before(start) {
		return models.Period{}, errors.New("to before from")
	}
	return models.Period{Start: start, End: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}, nil
}

// GET /api/v1/tasks?status=PENDING|DONE|CANCELLED
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var status *models.TaskStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := models.ParseTaskStatus(v)
		if err != nil {
			http.Error(w, `{"error":"invalid status"}`, http.StatusBadRequest)
			return
		}
		status = &s
	}
	tasks, err := h.tasks.ListByAccount(r.Context(), acc.ID, status)
	if err != nil {
		h.log.Error("list tasks failed", "account_id", acc.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// PATCH /api/v1/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task ID"}`, http.StatusBadRequest)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	status, err := models.ParseTaskStatus(body.Status)
	if err != nil {
		http.Error(w, `{"error":"invalid status"}`, http.StatusBadRequest)
		return
	}
	if err := h.tasks.UpdateStatus(r.Context(), acc.ID, id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("update task failed", "task_id", id, "error", err)
		http.Error(w, `{"error":"update failed"}`, http.StatusInternalServerError)
		return
	}
	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("reload task failed", "task_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

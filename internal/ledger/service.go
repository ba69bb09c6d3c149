// Package ledger stores financial entries and answers summary questions
// about them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/textnorm"
)

// DefaultCategory is used when the interpreter names none.
const DefaultCategory = "Outros"

// RecentLimit is how many entries a summary lists.
const RecentLimit = 5

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Categories(ctx context.Context, dir models.Direction) ([]*models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error)
	CreateEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	Entries(ctx context.Context, f Filter, limit int) ([]*models.LedgerEntry, error)
	Totals(ctx context.Context, f Filter) (in, out decimal.Decimal, count int, err error)
	Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	OutflowByCategory(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.CategoryTotal, error)
	CountEntries(ctx context.Context, accountID uuid.UUID) (int, error)
}

var _ Store = (*Repository)(nil)

// Summary answers a ledger query for one period.
type Summary struct {
	Period    models.Period
	Direction *models.Direction
	Count     int
	TotalIn   decimal.Decimal
	TotalOut  decimal.Decimal
	// Balance is all-time, not limited to the period.
	Balance    decimal.Decimal
	Categories []models.CategoryTotal
	Recent     []*models.LedgerEntry
}

type Service interface {
	// ResolveCategory finds the category whose name matches ignoring case and
	// accents, creating it when none does.
	ResolveCategory(ctx context.Context, name string, dir models.Direction) (*models.Category, error)
	CreateEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	Summarize(ctx context.Context, accountID uuid.UUID, p models.Period, dir *models.Direction) (*Summary, error)
	Entries(ctx context.Context, f Filter) ([]*models.LedgerEntry, error)
	CountEntries(ctx context.Context, accountID uuid.UUID) (int, error)
}

type service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, logger: logger}
}

var _ Service = (*service)(nil)

func (s *service) ResolveCategory(ctx context.Context, name string, dir models.Direction) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCategory
	}
	want := textnorm.Fold(name)
	existing, err := s.store.Categories(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	for _, c := range existing {
		if textnorm.Fold(c.Name) == want {
			return c, nil
		}
	}
	c := &models.Category{
		ID:        uuid.New(),
		Name:      textnorm.Capitalize(name),
		Direction: dir,
		Icon:      models.CategoryIconOut,
		Color:     models.CategoryColorOut,
	}
	if dir == models.DirectionIn {
		c.Icon, c.Color = models.CategoryIconIn, models.CategoryColorIn
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", c.Name, err)
	}
	s.logger.Info("category created", "name", created.Name, "direction", created.Direction)
	return created, nil
}

func (s *service) CreateEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return s.store.CreateEntryTx(ctx, tx, e)
}

func (s *service) Summarize(ctx context.Context, accountID uuid.UUID, p models.Period, dir *models.Direction) (*Summary, error) {
	f := Filter{AccountID: accountID, From: p.Start, To: p.End, Direction: dir}
	in, out, count, err := s.store.Totals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("period totals: %w", err)
	}
	sum := &Summary{Period: p, Direction: dir, Count: count, TotalIn: in, TotalOut: out}
	if count == 0 {
		return sum, nil
	}
	if sum.Balance, err = s.store.Balance(ctx, accountID); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	if dir == nil || *dir == models.DirectionOut {
		if sum.Categories, err = s.store.OutflowByCategory(ctx, accountID, p.Start, p.End); err != nil {
			return nil, fmt.Errorf("category totals: %w", err)
		}
	}
	if sum.Recent, err = s.store.Entries(ctx, f, RecentLimit); err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	return sum, nil
}

func (s *service) Entries(ctx context.Context, f Filter) ([]*models.LedgerEntry, error) {
	return s.store.Entries(ctx, f, 0)
}

func (s *service) CountEntries(ctx context.Context, accountID uuid.UUID) (int, error) {
	return s.store.CountEntries(ctx, accountID)
}

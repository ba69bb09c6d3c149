package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/finia/backend/internal/intent"
	"github.com/finia/backend/internal/ledger"
	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
	"github.com/finia/backend/internal/temporal"
)

// ---------------------------------------------------------------------------
// noopTx satisfies pgx.Tx; fakeTx stages writes until Commit.
// ---------------------------------------------------------------------------

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type fakeTx struct {
	noopTx
	db      *fakeDB
	pending []func()
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	for _, apply := range t.pending {
		apply()
	}
	t.pending = nil
	t.db.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.pending = nil
	return nil
}

func stage(tx pgx.Tx, apply func()) {
	ft := tx.(*fakeTx)
	ft.pending = append(ft.pending, apply)
}

// ---------------------------------------------------------------------------
// fakeDB backs every repository interface the services consume.
// ---------------------------------------------------------------------------

type fakeDB struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account
	categories   []*models.Category
	entries      []*models.LedgerEntry
	tasks        []*models.Task
	interactions []*models.InteractionRecord
	commits      int

	// hideSeen makes Exists report false, as when a concurrent delivery
	// records the message after the check.
	hideSeen   bool
	failEntry  error
	failCreate error
}

func newFakeDB() *fakeDB {
	return &fakeDB{accounts: make(map[string]*models.Account)}
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) { return &fakeTx{db: db}, nil }

// accounts

func (db *fakeDB) Ensure(_ context.Context, a *models.Account) (*models.Account, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failCreate != nil {
		return nil, false, db.failCreate
	}
	if got, ok := db.accounts[a.Phone]; ok {
		cp := *got
		return &cp, false, nil
	}
	cp := *a
	db.accounts[a.Phone] = &cp
	return a, true, nil
}

func (db *fakeDB) Update(_ context.Context, a *models.Account) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.accounts[a.Phone]; !ok {
		return repository.ErrNotFound
	}
	cp := *a
	db.accounts[a.Phone] = &cp
	return nil
}

func (db *fakeDB) account(phone string) *models.Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.accounts[phone]
}

func (db *fakeDB) put(a *models.Account) {
	db.mu.Lock()
	defer db.mu.Unlock()
	cp := *a
	db.accounts[a.Phone] = &cp
}

// ledger

// ResolveCategory runs the real matching rules over the fake's categories.
func (db *fakeDB) ResolveCategory(ctx context.Context, name string, dir models.Direction) (*models.Category, error) {
	return ledger.NewService(categoryStore{db: db}, nil).ResolveCategory(ctx, name, dir)
}

// categoryStore exposes only the category half of ledger.Store; the rest
// panics if reached.
type categoryStore struct {
	ledger.Store
	db *fakeDB
}

func (s categoryStore) Categories(_ context.Context, dir models.Direction) ([]*models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*models.Category
	for _, c := range s.db.categories {
		if c.Direction == dir {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s categoryStore) CreateCategory(_ context.Context, c *models.Category) (*models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.categories = append(s.db.categories, c)
	return c, nil
}

func (db *fakeDB) CreateEntryTx(_ context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	if db.failEntry != nil {
		return db.failEntry
	}
	stage(tx, func() { db.entries = append(db.entries, e) })
	return nil
}

func (db *fakeDB) Summarize(_ context.Context, accountID uuid.UUID, p models.Period, dir *models.Direction) (*ledger.Summary, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	sum := &ledger.Summary{Period: p, Direction: dir}
	for _, e := range db.entries {
		if e.AccountID != accountID || !p.Contains(e.OccurredAt) || (dir != nil && e.Direction != *dir) {
			continue
		}
		sum.Count++
		if e.Direction == models.DirectionIn {
			sum.TotalIn = sum.TotalIn.Add(e.Amount)
		} else {
			sum.TotalOut = sum.TotalOut.Add(e.Amount)
		}
	}
	return sum, nil
}

func (db *fakeDB) CountEntries(_ context.Context, accountID uuid.UUID) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, e := range db.entries {
		if e.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// tasks

func (db *fakeDB) CreateTx(_ context.Context, tx pgx.Tx, t *models.Task) error {
	stage(tx, func() { db.tasks = append(db.tasks, t) })
	return nil
}

func (db *fakeDB) ListPending(_ context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]*models.Task, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []*models.Task
	for _, t := range db.tasks {
		if t.AccountID == accountID && t.Status == models.TaskStatusPending &&
			!t.ScheduledDate.Before(from) && !t.ScheduledDate.After(to) {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// interactions

type fakeInteractions struct{ db *fakeDB }

func (f fakeInteractions) Exists(_ context.Context, messageID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.hideSeen {
		return false, nil
	}
	return f.db.seen(messageID), nil
}

func (db *fakeDB) seen(messageID string) bool {
	for _, r := range db.interactions {
		if r.MessageID != nil && *r.MessageID == messageID {
			return true
		}
	}
	return false
}

func (f fakeInteractions) CreateTx(_ context.Context, tx pgx.Tx, rec *models.InteractionRecord) error {
	f.db.mu.Lock()
	dup := rec.MessageID != nil && f.db.seen(*rec.MessageID)
	f.db.mu.Unlock()
	if dup {
		return repository.ErrDuplicate
	}
	stage(tx, func() { f.db.interactions = append(f.db.interactions, rec) })
	return nil
}

func (f fakeInteractions) Record(_ context.Context, rec *models.InteractionRecord) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if rec.MessageID != nil && f.db.seen(*rec.MessageID) {
		return false, nil
	}
	f.db.interactions = append(f.db.interactions, rec)
	return true, nil
}

func (f fakeInteractions) CountByAccount(_ context.Context, accountID uuid.UUID) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	n := 0
	for _, r := range f.db.interactions {
		if r.AccountID == accountID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Interpreter stub
// ---------------------------------------------------------------------------

type stubInterpreter struct {
	mu    sync.Mutex
	guess *intent.Guess
	err   error
	calls int
}

func (s *stubInterpreter) Interpret(context.Context, string, time.Time) (*intent.Guess, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.guess, s.err
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var errBoom = errors.New("boom")

// Monday 19 Oct 2026, 15:30 in São Paulo.
func fixedNow() time.Time {
	loc, err := time.LoadLocation(temporal.DefaultZone)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, time.October, 19, 15, 30, 0, 0, loc)
}

type fixture struct {
	db       *fakeDB
	now      time.Time
	resolver *temporal.Resolver
	ent      *Entitlement
	disp     *Dispatcher
	interp   *stubInterpreter
	proc     *Processor
}

func newFixture() *fixture {
	db := newFakeDB()
	now := fixedNow()
	clock := func() time.Time { return now }
	resolver := temporal.New(now.Location(), clock)
	inter := fakeInteractions{db: db}
	ent := NewEntitlement(db, inter, db, DefaultPolicy(), clock, nil)
	disp := NewDispatcher(db, db, db, inter, resolver, nil)
	interp := &stubInterpreter{}
	return &fixture{
		db:       db,
		now:      now,
		resolver: resolver,
		ent:      ent,
		disp:     disp,
		interp:   interp,
		proc:     NewProcessor(ent, interp, disp, nil),
	}
}

func trialAccount(phone string, now time.Time) *models.Account {
	exp := now.AddDate(0, 0, 2)
	return &models.Account{ID: uuid.New(), Phone: phone, Plan: models.PlanTrial, TrialExpiresAt: &exp}
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func strPtr(s string) *string { return &s }

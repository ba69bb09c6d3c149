package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finia/backend/internal/intent"
	"github.com/finia/backend/internal/ledger"
	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
	"github.com/finia/backend/internal/temporal"
)

// TaskListLimit caps a task listing.
const TaskListLimit = 50

// TxBeginner opens the transaction a mutation and its interaction record
// share. *pgxpool.Pool implements it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DispatcherLedger is the ledger surface used by the dispatcher.
type DispatcherLedger interface {
	ResolveCategory(ctx context.Context, name string, dir models.Direction) (*models.Category, error)
	CreateEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	Summarize(ctx context.Context, accountID uuid.UUID, p models.Period, dir *models.Direction) (*ledger.Summary, error)
}

// DispatcherTaskRepo is the task repository interface used by the dispatcher.
type DispatcherTaskRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	ListPending(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]*models.Task, error)
}

// InteractionRepo records processed messages.
type InteractionRepo interface {
	Exists(ctx context.Context, messageID string) (bool, error)
	CreateTx(ctx context.Context, tx pgx.Tx, rec *models.InteractionRecord) error
	Record(ctx context.Context, rec *models.InteractionRecord) (bool, error)
}

// ResultKind tells the composer which reply to build.
type ResultKind int

const (
	ResultFailure ResultKind = iota
	// ResultDuplicate means the message was already handled; nothing is sent.
	ResultDuplicate
	ResultLedgerInserted
	ResultLedgerSummary
	ResultTaskInserted
	ResultTaskList
	ResultNothingFound
	ResultAccessLink
	ResultFallback
	ResultDenied
	// ResultTranscriptionFailed is set when a voice message could not be
	// turned into text.
	ResultTranscriptionFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultDuplicate:
		return "duplicate"
	case ResultLedgerInserted:
		return "ledger_inserted"
	case ResultLedgerSummary:
		return "ledger_summary"
	case ResultTaskInserted:
		return "task_inserted"
	case ResultTaskList:
		return "task_list"
	case ResultNothingFound:
		return "nothing_found"
	case ResultAccessLink:
		return "access_link"
	case ResultFallback:
		return "fallback"
	case ResultDenied:
		return "denied"
	case ResultTranscriptionFailed:
		return "transcription_failed"
	}
	return "failure"
}

// TaskDay is one day of a task listing.
type TaskDay struct {
	Date  time.Time
	Label string
	Tasks []*models.Task
}

// Result is what handling one message produced.
type Result struct {
	Kind    ResultKind
	Command intent.Command
	Account *models.Account

	Entry    *models.LedgerEntry
	Category *models.Category
	Summary  *ledger.Summary

	Task     *models.Task
	TaskDays []TaskDay

	// Period and Direction describe an empty query for ResultNothingFound.
	Period    models.Period
	Direction *models.Direction

	Fallback intent.Fallback
	Denial   *Denial
}

// Dispatcher executes actionable commands.
type Dispatcher struct {
	Pool         TxBeginner
	Ledger       DispatcherLedger
	Tasks        DispatcherTaskRepo
	Interactions InteractionRepo
	Resolver     *temporal.Resolver
	Logger       *slog.Logger
}

func NewDispatcher(pool TxBeginner, ledger DispatcherLedger, tasks DispatcherTaskRepo, interactions InteractionRepo, resolver *temporal.Resolver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Pool:         pool,
		Ledger:       ledger,
		Tasks:        tasks,
		Interactions: interactions,
		Resolver:     resolver,
		Logger:       logger,
	}
}

// Dispatch runs cmd for acc. It never returns nil; persistence errors are
// logged and reported as ResultFailure with nothing recorded, so a
// redelivered message is processed again.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd intent.Command, acc *models.Account) *Result {
	if cmd.MessageID != "" {
		seen, err := d.Interactions.Exists(ctx, cmd.MessageID)
		if err != nil {
			return d.fail(cmd, acc, "check message id", err)
		}
		if seen {
			return &Result{Kind: ResultDuplicate, Command: cmd, Account: acc}
		}
	}

	now := d.Resolver.Now()
	switch {
	case cmd.Domain == intent.DomainLedger && cmd.Action == intent.ActionInsert && cmd.Amount != nil:
		return d.insertLedger(ctx, cmd, acc, now)
	case cmd.Domain == intent.DomainLedger:
		return d.queryLedger(ctx, cmd, acc, now)
	case cmd.Domain == intent.DomainTask && cmd.Action == intent.ActionInsert:
		return d.insertTask(ctx, cmd, acc, now)
	case cmd.Domain == intent.DomainTask:
		return d.queryTasks(ctx, cmd, acc, now)
	}
	return d.fail(cmd, acc, "dispatch", fmt.Errorf("command not actionable: %q/%q", cmd.Domain, cmd.Action))
}

func (d *Dispatcher) insertLedger(ctx context.Context, cmd intent.Command, acc *models.Account, now time.Time) *Result {
	dir := models.DirectionOut
	if cmd.Direction != nil {
		dir = *cmd.Direction
	}
	cat, err := d.Ledger.ResolveCategory(ctx, cmd.Category, dir)
	if err != nil {
		return d.fail(cmd, acc, "resolve category", err)
	}
	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		AccountID:    acc.ID,
		Amount:       *cmd.Amount,
		Direction:    dir,
		CategoryID:   cat.ID,
		OccurredAt:   d.occurredAt(cmd.DateHint, now),
		Description:  cmd.Description,
		OriginText:   cmd.Text,
		Confirmed:    true,
		CategoryName: cat.Name,
	}
	err = d.inTx(ctx, func(tx pgx.Tx) error {
		if err := d.Ledger.CreateEntryTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("create ledger entry: %w", err)
		}
		return d.Interactions.CreateTx(ctx, tx, NewInteraction(cmd, acc, models.InteractionLedger, true))
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return &Result{Kind: ResultDuplicate, Command: cmd, Account: acc}
	}
	if err != nil {
		return d.fail(cmd, acc, "insert ledger entry", err)
	}
	d.Logger.Info("ledger entry recorded", "account_id", acc.ID, "entry_id", entry.ID, "direction", dir, "category", cat.Name)
	return &Result{Kind: ResultLedgerInserted, Command: cmd, Account: acc, Entry: entry, Category: cat}
}

// occurredAt keeps the time of day of now on a hinted calendar day.
func (d *Dispatcher) occurredAt(hint string, now time.Time) time.Time {
	if len(hint) < 10 {
		return now
	}
	day, err := time.ParseInLocation("2006-01-02", hint[:10], d.Resolver.Location())
	if err != nil || day.After(now) {
		return now
	}
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, d.Resolver.Location())
}

func (d *Dispatcher) queryLedger(ctx context.Context, cmd intent.Command, acc *models.Account, now time.Time) *Result {
	p := d.Resolver.ResolveLedgerQueryPeriod(cmd.PeriodHint, cmd.Text, now)
	dir := cmd.Direction
	if dir == nil {
		dir = intent.InferDirection(cmd.Text)
	}
	sum, err := d.Ledger.Summarize(ctx, acc.ID, p, dir)
	if err != nil {
		return d.fail(cmd, acc, "summarize ledger", err)
	}
	res := &Result{Kind: ResultLedgerSummary, Command: cmd, Account: acc, Summary: sum, Period: p, Direction: dir}
	if sum.Count == 0 {
		res.Kind = ResultNothingFound
	}
	return d.recordQuery(ctx, res, models.InteractionLedger)
}

func (d *Dispatcher) insertTask(ctx context.Context, cmd intent.Command, acc *models.Account, now time.Time) *Result {
	s := d.Resolver.ResolveTaskDateTime(cmd.Text, cmd.DateHint, cmd.TimeHint, now)
	task := &models.Task{
		ID:            uuid.New(),
		AccountID:     acc.ID,
		Description:   cmd.Description,
		ScheduledDate: s.Date,
		ScheduledTime: s.Time,
		Status:        models.TaskStatusPending,
		OriginText:    cmd.Text,
	}
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		if err := d.Tasks.CreateTx(ctx, tx, task); err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		return d.Interactions.CreateTx(ctx, tx, NewInteraction(cmd, acc, models.InteractionTask, true))
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return &Result{Kind: ResultDuplicate, Command: cmd, Account: acc}
	}
	if err != nil {
		return d.fail(cmd, acc, "insert task", err)
	}
	d.Logger.Info("task recorded", "account_id", acc.ID, "task_id", task.ID, "date", task.ScheduledDate.Format("2006-01-02"))
	return &Result{Kind: ResultTaskInserted, Command: cmd, Account: acc, Task: task}
}

func (d *Dispatcher) queryTasks(ctx context.Context, cmd intent.Command, acc *models.Account, now time.Time) *Result {
	p := d.Resolver.ResolveTaskQueryPeriod(cmd.Text, now)
	tasks, err := d.Tasks.ListPending(ctx, acc.ID, p.Start, p.End, TaskListLimit)
	if err != nil {
		return d.fail(cmd, acc, "list tasks", err)
	}
	res := &Result{Kind: ResultTaskList, Command: cmd, Account: acc, Period: p}
	if len(tasks) == 0 {
		res.Kind = ResultNothingFound
	}
	res.TaskDays = d.groupByDay(tasks, now)
	return d.recordQuery(ctx, res, models.InteractionTask)
}

// groupByDay buckets tasks, already ordered by date, under day headings.
// Stored dates carry no zone, so they are re-anchored to the local calendar.
func (d *Dispatcher) groupByDay(tasks []*models.Task, now time.Time) []TaskDay {
	loc := d.Resolver.Location()
	var days []TaskDay
	for _, t := range tasks {
		day := time.Date(t.ScheduledDate.Year(), t.ScheduledDate.Month(), t.ScheduledDate.Day(), 0, 0, 0, 0, loc)
		if n := len(days); n == 0 || !days[n-1].Date.Equal(day) {
			days = append(days, TaskDay{Date: day, Label: d.Resolver.DayLabel(day, now)})
		}
		days[len(days)-1].Tasks = append(days[len(days)-1].Tasks, t)
	}
	return days
}

// recordQuery stores the interaction of a read-only command. Losing the
// insert race to a concurrent delivery turns the result into a duplicate.
func (d *Dispatcher) recordQuery(ctx context.Context, res *Result, kind models.InteractionKind) *Result {
	inserted, err := d.Interactions.Record(ctx, NewInteraction(res.Command, res.Account, kind, true))
	if err != nil {
		return d.fail(res.Command, res.Account, "record interaction", err)
	}
	if !inserted {
		return &Result{Kind: ResultDuplicate, Command: res.Command, Account: res.Account}
	}
	return res
}

func (d *Dispatcher) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *Dispatcher) fail(cmd intent.Command, acc *models.Account, op string, err error) *Result {
	attrs := []any{"op", op, "error", err, "message_id", cmd.MessageID}
	if acc != nil {
		attrs = append(attrs, "account_id", acc.ID)
	}
	d.Logger.Error("dispatch failed", attrs...)
	return &Result{Kind: ResultFailure, Command: cmd, Account: acc}
}

// NewInteraction builds the record stored for a handled message.
func NewInteraction(cmd intent.Command, acc *models.Account, kind models.InteractionKind, success bool) *models.InteractionRecord {
	rec := &models.InteractionRecord{
		ID:        uuid.New(),
		AccountID: acc.ID,
		InputText: cmd.Text,
		Kind:      kind,
		Success:   success,
	}
	if cmd.MessageID != "" {
		id := cmd.MessageID
		rec.MessageID = &id
	}
	if cmd.Actionable() {
		if b, err := json.Marshal(cmd); err == nil {
			rec.Interpretation = b
		}
	}
	return rec
}

// Package app assembles the message pipeline from configuration. Both the
// API server and finiactl build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finia/backend/internal/auth"
	"github.com/finia/backend/internal/chart"
	"github.com/finia/backend/internal/config"
	"github.com/finia/backend/internal/interpreter"
	"github.com/finia/backend/internal/ledger"
	"github.com/finia/backend/internal/reply"
	"github.com/finia/backend/internal/repository"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/temporal"
)

type Core struct {
	Resolver     *temporal.Resolver
	Accounts     *repository.AccountRepo
	Tasks        *repository.TaskRepo
	Interactions *repository.InteractionRepo
	Ledger       ledger.Service
	Auth         auth.Service
	Interpreter  *interpreter.Client
	Processor    *services.Processor
	Composer     *reply.Composer
}

// Build wires repositories, services and the composer over pool.
func Build(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*Core, error) {
	resolver, err := temporal.NewInZone(cfg.TimeZone, nil)
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}

	accounts := repository.NewAccountRepo(pool)
	tasks := repository.NewTaskRepo(pool)
	interactions := repository.NewInteractionRepo(pool)
	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), logger)

	authSvc, err := auth.NewService(repository.NewAccessTokenRepo(pool), auth.Config{
		Secret:      []byte(cfg.JWTSecret),
		LinkBaseURL: cfg.AccessLinkBaseURL,
		LinkTTL:     cfg.AccessLinkTTL,
	}, resolver.Now, logger)
	if err != nil {
		return nil, err
	}

	interp, err := interpreter.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}

	policy := services.Policy{
		TrialDays:           cfg.Trial.Days,
		TrialInteractionCap: cfg.Trial.InteractionCap,
		TrialLedgerCap:      cfg.Trial.LedgerEntryCap,
	}
	ent := services.NewEntitlement(accounts, interactions, ledgerSvc, policy, resolver.Now, logger)
	disp := services.NewDispatcher(pool, ledgerSvc, tasks, interactions, resolver, logger)

	composer := reply.NewComposer(chart.NewClient(cfg.ChartBaseURL), authSvc, resolver, cfg.SubscribeURL, logger)
	if cfg.AccessLinkTTL > 0 {
		composer.LinkTTL = cfg.AccessLinkTTL
	}

	return &Core{
		Resolver:     resolver,
		Accounts:     accounts,
		Tasks:        tasks,
		Interactions: interactions,
		Ledger:       ledgerSvc,
		Auth:         authSvc,
		Interpreter:  interp,
		Processor:    services.NewProcessor(ent, interp, disp, logger),
		Composer:     composer,
	}, nil
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/adapter/chromedp_tab"
	"github.com/tchan1002/apache/internal/adapter/memory"
	"github.com/tchan1002/apache/internal/adapter/pathfinder"
	"github.com/tchan1002/apache/internal/adapter/postgres"
	"github.com/tchan1002/apache/internal/adapter/redis"
	"github.com/tchan1002/apache/internal/adapter/sqlite"
	"github.com/tchan1002/apache/internal/adapter/webpage"
	"github.com/tchan1002/apache/internal/entity"
	"github.com/tchan1002/apache/internal/repository"
	"github.com/tchan1002/apache/internal/usecase"
	"github.com/tchan1002/apache/pkg/config"
)

// app is one fully wired client.
type app struct {
	session    *usecase.ClientSession
	backend    repository.Backend
	tab        *chromedp_tab.Tab
	controller *usecase.Controller

	closers []func()
}

// newApp wires the client from e.cfg. listener may be nil.
func newApp(ctx context.Context, e *env, listener usecase.Listener) (*app, error) {
	cfg := e.cfg
	a := &app{session: usecase.NewClientSession()}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	client := pathfinder.NewClient(cfg.APIBase,
		pathfinder.WithTimeout(cfg.HTTPTimeout),
		pathfinder.WithStreamTimeout(cfg.StreamTimeout),
		pathfinder.WithLogger(e.logger),
		pathfinder.WithMetrics(e.metrics),
		pathfinder.WithSessionID(a.session.ID),
	)
	a.backend = client

	var (
		tabs  repository.TabRepository
		pages repository.PageRepository = webpage.NewFetcher(cfg.HTTPTimeout, e.logger)
	)
	if cfg.ChromeDebuggerURL != "" {
		tab, err := chromedp_tab.New(ctx, cfg.ChromeDebuggerURL, cfg.HTTPTimeout, e.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.tab = tab
		a.closers = append(a.closers, tab.Close)
		tabs = tab
		pages = tab
	}

	tiers := make([]entity.Tier, 0, len(cfg.QueryTiers))
	for _, t := range cfg.QueryTiers {
		tiers = append(tiers, entity.Tier(t))
	}

	readiness := usecase.NewReadinessChecker(client, store, cfg.CheckSpecificPath, e.logger, e.metrics)
	poller := usecase.NewPoller(client, cfg.PollInterval, cfg.PollMaxAttempts, e.logger, e.metrics)
	scout := usecase.NewScout(a.session, readiness, client, store, poller, e.logger, e.metrics)
	dispatcher, err := usecase.NewQueryDispatcher(a.session, readiness, client, store, pages, tiers, e.logger, e.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.controller = usecase.NewController(a.session, readiness, scout, dispatcher, client, store, tabs, listener, e.logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg *config.Config) (repository.SiteStateRepository, error) {
	switch cfg.StateBackend {
	case config.BackendMemory:
		return memory.NewStateRepo(), nil

	case config.BackendSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, closeQuietly(repo))
		return repo, nil

	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, closeQuietly(rdb))
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return redis.NewStateRepo(rdb, cfg.RedisPrefix, cfg.StateTTL), nil

	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		repo := postgres.NewStateRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
}

// Close releases stores and the browser connection in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeQuietly(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// logListener reports controller events through the logger.
func logListener(logger *zap.Logger) usecase.Listener {
	return func(ev usecase.Event) {
		fields := []zap.Field{zap.String("kind", string(ev.Kind)), zap.String("url", ev.URL)}
		if ev.Message != "" {
			fields = append(fields, zap.String("message", ev.Message))
		}
		if ev.Err != nil {
			fields = append(fields, zap.Error(ev.Err))
		}
		logger.Debug("controller event", fields...)
	}
}

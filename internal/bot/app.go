package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/aviabot/core/bootstrap"
	corecmd "github.com/m3rciful/aviabot/core/cmd"
	"github.com/m3rciful/aviabot/core/logger"
	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/router"
	tgsender "github.com/m3rciful/aviabot/core/telegram/sender"
	"github.com/m3rciful/aviabot/internal/config"
	"github.com/m3rciful/aviabot/internal/dialog"
	"github.com/m3rciful/aviabot/internal/flights"
	"github.com/m3rciful/aviabot/internal/history"
	"github.com/m3rciful/aviabot/internal/observability"
	"github.com/m3rciful/aviabot/internal/reference"
	"github.com/m3rciful/aviabot/internal/weather"
)

const metricsNamespace = "aviabot"

// App is the assembled bot: storage, services, dialog engine and Telegram wiring.
type App struct {
	cfg        *config.Config
	db         *sqlx.DB
	metrics    *observability.Metrics
	store      *dialog.Store
	handlers   *Handlers
	registry   *tg.Registry
	dispatcher *tgsender.Dispatcher
	ops        *observability.Server
}

// Bootstrap initializes logging, the database, migrations and reference data,
// then assembles the App. It matches corecmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("bot: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{reference.Seeder{Path: cfg.Reference.SeedFile}},
	})
	if err != nil {
		return nil, err
	}
	app, err := New(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return app, nil
}

// New wires the App over an open database.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("bot: config and database are required")
	}
	m := observability.NewMetrics(metricsNamespace)
	refs := reference.NewPostgresStore(db)
	hist := history.NewLog(history.NewPostgresRepository(db),
		history.WithLimit(cfg.History.Limit),
		history.WithMetrics(m),
	)
	search := flights.NewService(flights.NewClient(flights.ClientConfig{
		BaseURL:  cfg.Aviasales.BaseURL,
		Token:    cfg.Aviasales.Token,
		Currency: cfg.Aviasales.Currency,
		Limit:    cfg.Aviasales.Limit,
		Timeout:  cfg.Aviasales.Timeout,
	}), refs, m)
	forecast := weather.NewService(weather.Config{
		BaseURL: cfg.Weather.BaseURL,
		Host:    cfg.Weather.Host,
		Key:     cfg.Weather.Key,
		Timeout: cfg.Weather.Timeout,
	}, m)

	engine, store, err := NewEngine(refs, search, forecast, cfg.Dialog.SessionTTL, m)
	if err != nil {
		return nil, err
	}
	m.TrackActiveDialogs(engine.ActiveCount)

	dispatcher := tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2})
	handlers := NewHandlers(engine, hist, dispatcher.ErrorCount)
	reg := tg.NewRegistry()
	if err := handlers.Register(reg); err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("bot: register handlers: %w", err)
	}

	a := &App{
		cfg:        cfg,
		db:         db,
		metrics:    m,
		store:      store,
		handlers:   handlers,
		registry:   reg,
		dispatcher: dispatcher,
	}
	if cfg.Ops.Listen != "" {
		a.ops = observability.NewServer(cfg.Ops.Listen, m, db)
	}
	return a, nil
}

// NewEngine builds the session store and the engine with the flight and
// weather resolvers. Expired sessions are logged and counted.
func NewEngine(cities reference.Store, search FlightSearcher, forecast Forecaster, ttl time.Duration, m dialog.Metrics) (*dialog.Engine, *dialog.Store, error) {
	store := dialog.NewStore(
		dialog.WithTTL(ttl),
		dialog.WithExpireHook(func(s dialog.Session) {
			if m != nil {
				m.DialogEvent(s.Kind, "expired")
			}
			logger.Info(logger.WithDialogID(logger.Background(), s.ID), logger.CompDialog, "dialog.expired",
				slog.String("status", "expired"),
				slog.String("kind", string(s.Kind)),
				slog.String("step", string(s.Step)),
				slog.Int64("user_id", s.UserID),
			)
		}),
	)
	flows, err := dialog.DefaultFlows(cities)
	if err != nil {
		return nil, nil, err
	}
	flightRes := FlightResolver(search)
	resolvers := map[dialog.Kind]dialog.Resolver{
		dialog.KindLow:     flightRes,
		dialog.KindHigh:    flightRes,
		dialog.KindCustom:  flightRes,
		dialog.KindWeather: WeatherResolver(forecast),
	}
	var opts []dialog.EngineOption
	if m != nil {
		opts = append(opts, dialog.WithMetrics(m))
	}
	engine, err := dialog.NewEngine(store, flows, resolvers, opts...)
	if err != nil {
		return nil, nil, err
	}
	return engine, store, nil
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	h := a.handlers

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: h.NotAllowed,
	})
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.TextRoutes(h, a.registry)...)

	return tg.RunOptions{
		Config:     core,
		Registry:   a.registry,
		Dispatcher: a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnLimited: h.RateLimited,
			OnPanic:   h.Panicked,
			Observer:  a.metrics,
		}),
		Routes: routes,
	}, nil
}

// Tasks implements corecmd.TelegramApp: the session janitor and, when
// configured, the ops server.
func (a *App) Tasks() []corecmd.Task {
	tasks := []corecmd.Task{{
		Name: "dialog.janitor",
		Run: func(ctx context.Context) error {
			return a.store.Run(ctx, a.cfg.Dialog.SweepInterval)
		},
	}}
	if a.ops != nil {
		tasks = append(tasks, corecmd.Task{Name: "ops.server", Run: a.ops.Run})
	}
	return tasks
}

// Close releases the database.
func (a *App) Close() error {
	a.dispatcher.Close()
	return a.db.Close()
}

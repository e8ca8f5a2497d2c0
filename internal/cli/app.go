package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/watzon/clickloop/internal/config"
	"github.com/watzon/clickloop/internal/database"
	"github.com/watzon/clickloop/internal/engine"
	"github.com/watzon/clickloop/internal/events"
	"github.com/watzon/clickloop/internal/history"
	"github.com/watzon/clickloop/internal/inject"
	"github.com/watzon/clickloop/internal/recorder"
	"github.com/watzon/clickloop/internal/scheduler"
	"github.com/watzon/clickloop/internal/server"
)

const shutdownTimeout = 5 * time.Second

// app is the runtime shared by commands that replay: database, run
// history, event bus, engine and the optional status server.
type app struct {
	cfg     *config.Config
	db      *database.DB
	history *history.Logger
	bus     *events.EventBus
	engine  *engine.Engine
	server  *server.Server
	served  chan error
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}

	retention := time.Duration(cfg.Database.HistoryRetentionDays) * 24 * time.Hour
	a := &app{
		cfg:     cfg,
		db:      db,
		history: history.NewLogger(db, retention),
		bus:     events.NewEventBus(nil),
	}

	a.engine = engine.New(engine.Options{
		Config:    cfg,
		Injector:  inject.Log{},
		Clipboard: recorder.SystemClipboard{},
		Bus:       a.bus,
		History:   a.history,
		State:     scheduler.NewStateStore(db),
	})

	a.bus.Start()
	a.history.Start()
	return a, nil
}

// serve starts the status server in the background when enabled.
func (a *app) serve(ctx context.Context) {
	if !a.cfg.Status.Enabled {
		return
	}

	a.server = server.New(&a.cfg.Status, a.engine,
		server.WithEvents(a.bus),
		server.WithHistory(a.history.Store()),
	)
	a.served = make(chan error, 1)
	go func() {
		a.served <- a.server.Start(ctx)
	}()
}

func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Status server shutdown failed")
		}
		cancel()
		if err := <-a.served; err != nil {
			log.Error().Err(err).Msg("Status server error")
		}
	}

	a.engine.Stop()
	a.bus.Stop()
	a.history.Stop()

	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Closing database failed")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ignoreCanceled maps a shutdown by signal to a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

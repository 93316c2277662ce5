// ABOUTME: Wires config into the store, script, transport, dispatcher and supervisor
// ABOUTME: Owns startup order and shutdown of every long-lived component

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-script/internal/bot"
	"github.com/2389/coven-script/internal/config"
	"github.com/2389/coven-script/internal/dedupe"
	"github.com/2389/coven-script/internal/dispatch"
	"github.com/2389/coven-script/internal/matrix"
	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/store"
	"github.com/2389/coven-script/internal/supervisor"
	"github.com/2389/coven-script/internal/whatsapp"
)

// transport is everything the app needs from a chat platform.
type transport interface {
	bot.Source
	dispatch.Messenger
	supervisor.Connector
	Close() error
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverSQLite:
		return store.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openTransport(ctx context.Context, cfg config.TransportConfig, logger *slog.Logger) (transport, error) {
	switch cfg.Kind {
	case config.TransportWhatsApp:
		return whatsapp.New(ctx, whatsapp.Config{
			SessionPath:  cfg.WhatsApp.SessionPath,
			SendInterval: cfg.WhatsApp.SendInterval,
			SendBurst:    cfg.WhatsApp.SendBurst,
		}, logger)
	case config.TransportMatrix:
		return matrix.New(matrix.Config{
			Homeserver:   cfg.Matrix.Homeserver,
			UserID:       cfg.Matrix.UserID,
			AccessToken:  cfg.Matrix.AccessToken,
			AllowedRooms: cfg.Matrix.AllowedRooms,
			Encryption:   cfg.Matrix.Encryption,
			RecoveryKey:  cfg.Matrix.RecoveryKey,
			DataDir:      cfg.Matrix.DataDir,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Kind)
	}
}

// run builds every component from cfg and blocks until ctx is cancelled or
// the connection is lost for good.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sc, err := script.Load(cfg.Script.Path, cfg.Delays)
	if err != nil {
		return fmt.Errorf("loading script: %w", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	tr, err := openTransport(ctx, cfg.Transport, logger)
	if err != nil {
		return fmt.Errorf("opening transport: %w", err)
	}
	defer func() {
		if err := tr.Close(); err != nil {
			logger.Error("closing transport", "error", err)
		}
	}()

	library := media.NewLibrary(cfg.Media.Dir, cfg.Media.MaxSize, logger)
	exec := dispatch.NewExecutor(tr, library, dispatch.SystemClock{}, logger)
	dispatcher, err := dispatch.New(st, sc, exec, dispatch.Options{
		Delivery: dispatch.Delivery(cfg.Dispatch.Delivery),
		Ledger:   st,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	seen := dedupe.New(cfg.Dispatch.DedupeTTL, dedupe.DefaultMaxSize)
	defer seen.Close()

	sup := supervisor.New(tr, supervisor.Backoff{
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		BaseDelay:   cfg.Reconnect.BaseDelay,
	}, supervisor.TerminalQR{}, logger)

	if err := sup.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	logger.Info("coven-script running",
		"transport", tr.Name(),
		"store", cfg.Store.Driver,
		"delivery", cfg.Dispatch.Delivery,
	)

	return bot.New(tr, dispatcher, sup, seen, logger).Run(ctx)
}

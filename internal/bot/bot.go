// ABOUTME: Event loop feeding transport messages to the dispatcher
// ABOUTME: Drops re-delivered messages and hands lifecycle events to the supervisor

package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/2389/coven-script/internal/dedupe"
	"github.com/2389/coven-script/internal/dispatch"
	"github.com/2389/coven-script/internal/supervisor"
)

// ErrSourceClosed is returned when the transport closes its channels.
var ErrSourceClosed = errors.New("transport closed its event channels")

// Source is the inbound side of a transport.
type Source interface {
	Name() string
	Events() <-chan dispatch.Event
	Lifecycle() <-chan supervisor.Event
}

// EventHandler processes one inbound message.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev dispatch.Event) error
}

// LifecycleHandler reacts to connection events. A non-nil error is fatal.
type LifecycleHandler interface {
	Handle(ctx context.Context, ev supervisor.Event) error
}

// Bot wires a Source to its handlers.
type Bot struct {
	source    Source
	handler   EventHandler
	lifecycle LifecycleHandler
	seen      *dedupe.Cache
	logger    *slog.Logger
}

// New creates a bot. A nil cache disables dedupe.
func New(source Source, handler EventHandler, lifecycle LifecycleHandler, seen *dedupe.Cache, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		source:    source,
		handler:   handler,
		lifecycle: lifecycle,
		seen:      seen,
		logger:    logger.With("component", "bot", "transport", source.Name()),
	}
}

// Run processes events until ctx is cancelled (returning nil) or the
// connection cannot be recovered.
func (b *Bot) Run(ctx context.Context) error {
	events := b.source.Events()
	lifecycle := b.source.Lifecycle()

	b.logger.Info("bot loop started")
	defer b.logger.Info("bot loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			b.handleInbound(ctx, ev)

		case lev, ok := <-lifecycle:
			if !ok {
				return ErrSourceClosed
			}
			if err := b.lifecycle.Handle(ctx, lev); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (b *Bot) handleInbound(ctx context.Context, ev dispatch.Event) {
	if b.seen != nil && ev.MessageID != "" {
		if b.seen.Seen(dedupe.Key(b.source.Name(), ev.MessageID)) {
			b.logger.Debug("dropping re-delivered message", "conversation", ev.ConversationID, "message_id", ev.MessageID)
			return
		}
	}

	if err := b.handler.HandleEvent(ctx, ev); err != nil {
		if ctx.Err() != nil {
			b.logger.Info("dispatch interrupted by shutdown", "conversation", ev.ConversationID)
			return
		}
		if errors.Is(err, dispatch.ErrUnknownStage) {
			b.logger.Warn("conversation reset", "conversation", ev.ConversationID, "error", err)
			return
		}
		b.logger.Error("dispatch failed", "conversation", ev.ConversationID, "error", err)
	}
}

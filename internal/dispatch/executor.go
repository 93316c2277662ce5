// ABOUTME: Step executor that interprets a stage's script against the messenger
// ABOUTME: Runs waits, indicators, text and media sends strictly in order

package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
)

// Executor runs script steps for one conversation.
type Executor struct {
	messenger Messenger
	media     MediaSource
	clock     Clock
	logger    *slog.Logger
}

// NewExecutor creates an executor. A nil clock uses SystemClock.
func NewExecutor(messenger Messenger, source MediaSource, clock Clock, logger *slog.Logger) *Executor {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		messenger: messenger,
		media:     source,
		clock:     clock,
		logger:    logger.With("component", "executor"),
	}
}

// Run executes steps in order and stops at the first failure.
func (e *Executor) Run(ctx context.Context, conversationID string, steps []script.Step) error {
	for i, step := range steps {
		if err := e.runStep(ctx, conversationID, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Describe(), err)
		}
	}
	return nil
}

func (e *Executor) runStep(ctx context.Context, conversationID string, step script.Step) error {
	switch s := step.(type) {
	case script.Wait:
		return e.clock.Sleep(ctx, s.Duration)

	case script.Indicator:
		if err := e.messenger.SetIndicator(ctx, conversationID, s.Kind); err != nil {
			return &SendError{Op: "indicator", ConversationID: conversationID, Err: err}
		}
		return nil

	case script.SendText:
		if err := e.messenger.SendText(ctx, conversationID, s.Text); err != nil {
			return &SendError{Op: "text", ConversationID: conversationID, Err: err}
		}
		e.logger.Debug("text sent", "conversation", conversationID)
		return nil

	case script.SendMedia:
		err := e.sendMedia(ctx, conversationID, s)
		if err != nil && s.Optional {
			e.logger.Warn("optional media skipped",
				"conversation", conversationID,
				"media", s.Ref,
				"error", err,
			)
			return nil
		}
		return err

	default:
		return fmt.Errorf("unsupported step type %T", step)
	}
}

func (e *Executor) sendMedia(ctx context.Context, conversationID string, s script.SendMedia) error {
	m, err := e.media.Open(s.Ref)
	if err != nil {
		return err
	}

	opts := media.SendOptions{
		Caption:  s.Caption,
		Voice:    s.Voice,
		ViewOnce: s.ViewOnce,
	}
	if err := e.messenger.SendMedia(ctx, conversationID, m, opts); err != nil {
		return &SendError{Op: "media", ConversationID: conversationID, Err: err}
	}

	e.logger.Info("media sent", "conversation", conversationID, "media", s.Ref, "kind", m.Kind)
	return nil
}

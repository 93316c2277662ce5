// ABOUTME: Stage dispatcher that advances one conversation per inbound event
// ABOUTME: Enforces finalization, duplicate suppression, pass-through cascade and unknown-stage reset

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/stage"
	"github.com/2389/coven-script/internal/store"
)

// ErrUnknownStage is returned when a conversation's stored stage is not part
// of the enumeration. The conversation has been reset when it is returned.
var ErrUnknownStage = stage.ErrUnknownStage

// ErrInvalidDelivery is returned by New for a delivery mode it does not know.
var ErrInvalidDelivery = errors.New("invalid delivery mode")

// Delivery selects when a stage's dispatch guard is set.
type Delivery string

const (
	AtMostOnce  Delivery = "at_most_once"
	AtLeastOnce Delivery = "at_least_once"
)

// Valid reports whether d is a known delivery mode.
func (d Delivery) Valid() bool {
	return d == AtMostOnce || d == AtLeastOnce
}

// Event is one inbound message that triggers a dispatch.
type Event struct {
	ConversationID string
	MessageID      string // platform message ID, used for dedupe upstream
	Text           string // not interpreted
}

// Options tunes a Dispatcher. The zero value is usable.
type Options struct {
	Delivery Delivery     // default AtMostOnce
	Ledger   store.Ledger // optional
	Now      func() time.Time
}

// Dispatcher advances conversations through the scripted stages.
type Dispatcher struct {
	store    store.ConversationStore
	ledger   store.Ledger
	script   *script.Script
	executor *Executor
	delivery Delivery
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a dispatcher. An empty delivery mode means AtMostOnce.
func New(st store.ConversationStore, sc *script.Script, exec *Executor, opts Options, logger *slog.Logger) (*Dispatcher, error) {
	if opts.Delivery == "" {
		opts.Delivery = AtMostOnce
	}
	if !opts.Delivery.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDelivery, opts.Delivery)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    st,
		ledger:   opts.Ledger,
		script:   sc,
		executor: exec,
		delivery: opts.Delivery,
		now:      opts.Now,
		logger:   logger.With("component", "dispatcher"),
	}, nil
}

// HandleEvent runs the conversation's current stage. Stage failures are
// returned wrapped with the stage name and leave the stage unchanged.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev Event) error {
	id := ev.ConversationID
	if id == "" {
		return errors.New("event has no conversation id")
	}

	finalized, err := d.store.IsFinalized(ctx, id)
	if err != nil {
		return fmt.Errorf("check finalized: %w", err)
	}
	if finalized {
		d.logger.Debug("conversation finalized, ignoring event", "conversation", id)
		return nil
	}

	current, found, err := d.store.GetStage(ctx, id)
	if err != nil {
		return fmt.Errorf("get stage: %w", err)
	}
	if !found {
		current = stage.First
		if err := d.store.SetStage(ctx, id, current); err != nil {
			return fmt.Errorf("init stage: %w", err)
		}
		d.logger.Info("new conversation", "conversation", id)
	}

	for {
		next, cascade, err := d.dispatchStage(ctx, id, current)
		if err != nil || !cascade {
			return err
		}
		current = next
	}
}

// dispatchStage runs one stage. cascade is true when the caller should
// immediately dispatch next within the same event.
func (d *Dispatcher) dispatchStage(ctx context.Context, id string, st stage.Stage) (next stage.Stage, cascade bool, err error) {
	steps, ok := d.script.Steps(st)
	if !ok {
		return stage.Unknown, false, d.resetUnknown(ctx, id, st)
	}

	dispatched, err := d.store.IsDispatched(ctx, id, st)
	if err != nil {
		return stage.Unknown, false, fmt.Errorf("stage %s: check dispatched: %w", st, err)
	}
	if dispatched {
		d.logger.Info("stage already dispatched, suppressing", "conversation", id, "stage", st)
		d.record(ctx, id, st, store.OutcomeDuplicate, nil)
		return stage.Unknown, false, nil
	}

	if d.delivery == AtMostOnce {
		if err := d.store.MarkDispatched(ctx, id, st); err != nil {
			return stage.Unknown, false, fmt.Errorf("stage %s: mark dispatched: %w", st, err)
		}
	}

	d.logger.Info("dispatching stage", "conversation", id, "stage", st, "steps", len(steps))
	if err := d.executor.Run(ctx, id, steps); err != nil {
		d.record(ctx, id, st, store.OutcomeFailed, err)
		return stage.Unknown, false, fmt.Errorf("stage %s: %w", st, err)
	}

	if d.delivery == AtLeastOnce {
		if err := d.store.MarkDispatched(ctx, id, st); err != nil {
			return stage.Unknown, false, fmt.Errorf("stage %s: mark dispatched: %w", st, err)
		}
	}

	if st.IsTerminal() {
		if err := d.store.Finalize(ctx, id); err != nil {
			return stage.Unknown, false, fmt.Errorf("stage %s: finalize: %w", st, err)
		}
		d.record(ctx, id, st, store.OutcomeCompleted, nil)
		d.logger.Info("conversation finalized", "conversation", id)
		return stage.Unknown, false, nil
	}

	next, _ = st.Next()
	if err := d.store.SetStage(ctx, id, next); err != nil {
		return stage.Unknown, false, fmt.Errorf("stage %s: advance to %s: %w", st, next, err)
	}
	d.record(ctx, id, st, store.OutcomeCompleted, nil)

	return next, st.IsPassThrough(), nil
}

func (d *Dispatcher) resetUnknown(ctx context.Context, id string, st stage.Stage) error {
	d.logger.Warn("unknown stage, resetting conversation", "conversation", id, "stage", st)
	d.record(ctx, id, st, store.OutcomeUnknownStage, nil)

	if err := d.store.Reset(ctx, id); err != nil {
		return fmt.Errorf("reset after unknown stage %s: %w", st, err)
	}
	return fmt.Errorf("conversation %s: %w: %s", id, ErrUnknownStage, st)
}

// record appends to the ledger. Ledger failures are logged and never fail a
// dispatch.
func (d *Dispatcher) record(ctx context.Context, id string, st stage.Stage, outcome store.DispatchOutcome, cause error) {
	if d.ledger == nil {
		return
	}

	rec := &store.DispatchRecord{
		ID:             uuid.New().String(),
		ConversationID: id,
		Stage:          st,
		Outcome:        outcome,
		At:             d.now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	if err := d.ledger.RecordDispatch(ctx, rec); err != nil {
		d.logger.Warn("failed to record dispatch", "conversation", id, "stage", st, "error", err)
	}
}

// ABOUTME: Store interfaces and data types for conversation stage tracking
// ABOUTME: Defines Conversation, DispatchRecord, and the ConversationStore contract

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-script/internal/stage"
)

// ErrNotFound is returned when a requested conversation does not exist
var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Conversation is a snapshot of one conversation's tracking state.
type Conversation struct {
	ID         string
	Stage      stage.Stage // meaningful only when HasStage is true
	HasStage   bool
	Dispatched []stage.Stage // in conversation order
	Finalized  bool
	UpdatedAt  time.Time
}

// DispatchOutcome describes how a dispatch attempt ended
type DispatchOutcome string

const (
	OutcomeCompleted    DispatchOutcome = "completed"
	OutcomeFailed       DispatchOutcome = "failed"
	OutcomeDuplicate    DispatchOutcome = "duplicate"
	OutcomeUnknownStage DispatchOutcome = "unknown_stage"
)

// DispatchRecord is one row of the append-only dispatch ledger.
// It never carries message content.
type DispatchRecord struct {
	ID             string
	ConversationID string
	Stage          stage.Stage
	Outcome        DispatchOutcome
	Error          string
	At             time.Time
}

// ConversationStore tracks per-conversation stage, idempotency guards and the
// finalized flag. Operations on an unseen identifier behave as operations on a
// fresh empty record.
type ConversationStore interface {
	// GetStage returns the current stage; found is false when no stage is set.
	GetStage(ctx context.Context, id string) (st stage.Stage, found bool, err error)
	// SetStage overwrites the current stage.
	SetStage(ctx context.Context, id string, st stage.Stage) error

	IsDispatched(ctx context.Context, id string, st stage.Stage) (bool, error)
	// MarkDispatched is idempotent.
	MarkDispatched(ctx context.Context, id string, st stage.Stage) error

	IsFinalized(ctx context.Context, id string) (bool, error)
	// Finalize is idempotent.
	Finalize(ctx context.Context, id string) error

	// Reset clears stage, dispatch guards and the finalized flag.
	Reset(ctx context.Context, id string) error
}

// Ledger records dispatch attempts for operators.
type Ledger interface {
	RecordDispatch(ctx context.Context, rec *DispatchRecord) error
	// ListDispatches returns up to limit records for a conversation, newest first.
	ListDispatches(ctx context.Context, conversationID string, limit int) ([]*DispatchRecord, error)
}

// Store is the full persistence surface used by the bot and the admin CLI.
type Store interface {
	ConversationStore
	Ledger

	// Unmark clears one stage's dispatch guard so the stage can run again.
	// Unmarking a stage that is not marked is a no-op.
	Unmark(ctx context.Context, id string, st stage.Stage) error

	// Get returns a snapshot of one conversation or ErrNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)
	// List returns up to limit conversations, most recently updated first.
	List(ctx context.Context, limit int) ([]*Conversation, error)

	// Close releases any resources held by the store
	Close() error
}

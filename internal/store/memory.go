// ABOUTME: In-memory Store implementation
// ABOUTME: Backs tests and the "memory" store driver; state is lost on restart

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/2389/coven-script/internal/stage"
)

type memoryRecord struct {
	stage      stage.Stage
	hasStage   bool
	dispatched map[stage.Stage]bool
	finalized  bool
	updatedAt  time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*memoryRecord      // keyed by conversation ID
	ledger        map[string][]*DispatchRecord // keyed by conversation ID, append order
	now           func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*memoryRecord),
		ledger:        make(map[string][]*DispatchRecord),
		now:           time.Now,
	}
}

// record returns the record for id, creating it if needed. Must be called with mu held.
func (m *MemoryStore) record(id string) *memoryRecord {
	rec, ok := m.conversations[id]
	if !ok {
		rec = &memoryRecord{dispatched: make(map[stage.Stage]bool)}
		m.conversations[id] = rec
	}
	return rec
}

// GetStage returns the current stage of a conversation.
func (m *MemoryStore) GetStage(ctx context.Context, id string) (stage.Stage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.conversations[id]
	if !ok || !rec.hasStage {
		return stage.Unknown, false, nil
	}
	return rec.stage, true, nil
}

// SetStage overwrites the current stage.
func (m *MemoryStore) SetStage(ctx context.Context, id string, st stage.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(id)
	rec.stage = st
	rec.hasStage = true
	rec.updatedAt = m.now().UTC()
	return nil
}

// IsDispatched reports whether the stage's guard is set.
func (m *MemoryStore) IsDispatched(ctx context.Context, id string, st stage.Stage) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.conversations[id]
	if !ok {
		return false, nil
	}
	return rec.dispatched[st], nil
}

// MarkDispatched sets the stage's guard.
func (m *MemoryStore) MarkDispatched(ctx context.Context, id string, st stage.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(id)
	rec.dispatched[st] = true
	rec.updatedAt = m.now().UTC()
	return nil
}

// Unmark clears one stage's guard.
func (m *MemoryStore) Unmark(ctx context.Context, id string, st stage.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.conversations[id]
	if !ok || !rec.dispatched[st] {
		return nil
	}
	delete(rec.dispatched, st)
	rec.updatedAt = m.now().UTC()
	return nil
}

// IsFinalized reports whether the conversation is finalized.
func (m *MemoryStore) IsFinalized(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.conversations[id]
	return ok && rec.finalized, nil
}

// Finalize marks the conversation finalized.
func (m *MemoryStore) Finalize(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.record(id)
	rec.finalized = true
	rec.updatedAt = m.now().UTC()
	return nil
}

// Reset forgets the conversation's tracking state. The ledger is kept.
func (m *MemoryStore) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conversations, id)
	return nil
}

// Get returns a snapshot of one conversation.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.snapshot(id), nil
}

// List returns conversations, most recently updated first.
func (m *MemoryStore) List(ctx context.Context, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Conversation, 0, len(m.conversations))
	for id, rec := range m.conversations {
		result = append(result, rec.snapshot(id))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memoryRecord) snapshot(id string) *Conversation {
	c := &Conversation{
		ID:        id,
		Stage:     r.stage,
		HasStage:  r.hasStage,
		Finalized: r.finalized,
		UpdatedAt: r.updatedAt,
	}
	for _, st := range stage.All() {
		if r.dispatched[st] {
			c.Dispatched = append(c.Dispatched, st)
		}
	}
	return c
}

// RecordDispatch appends a ledger record.
func (m *MemoryStore) RecordDispatch(ctx context.Context, rec *DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	r := *rec
	if r.At.IsZero() {
		r.At = m.now().UTC()
	}
	m.ledger[r.ConversationID] = append(m.ledger[r.ConversationID], &r)
	return nil
}

// ListDispatches returns ledger records for a conversation, newest first.
func (m *MemoryStore) ListDispatches(ctx context.Context, conversationID string, limit int) ([]*DispatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.ledger[conversationID]
	result := make([]*DispatchRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := *records[i]
		result = append(result, &r)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Close is a no-op for MemoryStore.
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)

// Package store tracks conversation progress for the scripted bot.
//
// # Architecture
//
// The package is interface-driven:
//
//   - ConversationStore: the core contract used by the dispatcher (stage,
//     dispatch guards, finalized flag, reset)
//   - Ledger: append-only record of dispatch attempts
//   - Store: both of the above plus Get/List/Close for the admin CLI
//
// Two implementations satisfy Store:
//
//   - MemoryStore: maps behind a RWMutex; nothing survives a restart
//   - SQLiteStore: modernc.org/sqlite with WAL mode
//
// # Data Model
//
//   - Conversation: current stage, dispatched stages, finalized flag
//   - DispatchRecord: one dispatch attempt (completed, failed, duplicate,
//     unknown_stage) with no message content
//
// Operations on an unseen conversation identifier behave as on an empty
// record: GetStage reports not found, IsDispatched and IsFinalized report
// false, Reset is a no-op. Get returns ErrNotFound.
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//
// Tables: conversations, dispatched_stages, dispatch_log. The schema is
// created on open. Stages are stored by name; names this build does not
// recognize decode to stage.Unknown.
//
// # Testing
//
// Use NewMemoryStore() for unit tests. Use NewSQLiteStore(":memory:") or a
// t.TempDir() path for integration tests with real SQLite.
package store

// Package bot runs the single event loop that connects a transport to the
// dispatcher and the connection supervisor.
//
// One goroutine selects over inbound messages, lifecycle events and the
// context. Each inbound message is processed to completion before the next is
// read, so the dispatcher never runs concurrently with itself. Re-delivered
// platform message IDs are dropped before dispatch. Dispatch errors are
// logged and the loop keeps going; only an unrecoverable connection ends Run
// with an error.
package bot

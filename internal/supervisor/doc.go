// Package supervisor owns the transport connection lifecycle.
//
// Transports report lifecycle events (Ready, QRChallenge, AuthFailure,
// Disconnected, LoggedOut) and the Supervisor reacts: QR challenges are
// rendered to the terminal, connection losses trigger a bounded reconnect
// loop with linearly growing waits. When every attempt fails, Handle returns
// ErrReconnectExhausted and the process is expected to exit.
package supervisor

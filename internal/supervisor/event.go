// ABOUTME: Connection lifecycle events reported by chat transports
// ABOUTME: Ready, QR challenge, auth failure, disconnect and logout

package supervisor

import "fmt"

// EventKind identifies a lifecycle event.
type EventKind int

const (
	EventReady EventKind = iota + 1
	EventQRChallenge
	EventAuthFailure
	EventDisconnected
	EventLoggedOut
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventQRChallenge:
		return "qr_challenge"
	case EventAuthFailure:
		return "auth_failure"
	case EventDisconnected:
		return "disconnected"
	case EventLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one lifecycle notification from a transport.
type Event struct {
	Kind   EventKind
	Reason string // AuthFailure, Disconnected, LoggedOut
	Token  string // QRChallenge
}

// Ready reports a usable connection.
func Ready() Event { return Event{Kind: EventReady} }

// QRChallenge carries a pairing token to show the operator.
func QRChallenge(token string) Event { return Event{Kind: EventQRChallenge, Token: token} }

// AuthFailure reports rejected credentials.
func AuthFailure(reason string) Event { return Event{Kind: EventAuthFailure, Reason: reason} }

// Disconnected reports a lost connection.
func Disconnected(reason string) Event { return Event{Kind: EventDisconnected, Reason: reason} }

// LoggedOut reports a revoked session.
func LoggedOut(reason string) Event { return Event{Kind: EventLoggedOut, Reason: reason} }

// ABOUTME: Connection supervisor that reacts to transport lifecycle events
// ABOUTME: Renders QR challenges and runs the bounded reconnect loop

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrReconnectExhausted is returned when every reconnect attempt failed.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Connector (re)establishes a transport connection.
type Connector interface {
	Connect(ctx context.Context) error
}

// Supervisor handles lifecycle events for one transport.
type Supervisor struct {
	conn    Connector
	backoff Backoff
	qr      QRRenderer
	logger  *slog.Logger

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a supervisor. A nil renderer draws QR codes on stdout.
func New(conn Connector, backoff Backoff, qr QRRenderer, logger *slog.Logger) *Supervisor {
	if qr == nil {
		qr = TerminalQR{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		conn:    conn,
		backoff: backoff,
		qr:      qr,
		logger:  logger.With("component", "supervisor"),
		sleep:   sleepContext,
	}
}

// Start makes the initial connection with the same attempt budget as a
// reconnect.
func (s *Supervisor) Start(ctx context.Context) error {
	return s.connect(ctx, "connecting")
}

// Handle reacts to one lifecycle event. A non-nil error means the connection
// is unrecoverable.
func (s *Supervisor) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventReady:
		s.logger.Info("client is ready")
		return nil

	case EventQRChallenge:
		s.logger.Info("pairing required, scan the QR code")
		s.qr.Render(ev.Token)
		return nil

	case EventAuthFailure, EventLoggedOut:
		s.logger.Error("authentication lost", "event", ev.Kind, "reason", ev.Reason)
		return s.Reconnect(ctx)

	case EventDisconnected:
		s.logger.Warn("client disconnected", "reason", ev.Reason)
		return s.Reconnect(ctx)

	default:
		s.logger.Warn("ignoring unknown lifecycle event", "event", ev.Kind)
		return nil
	}
}

// Reconnect calls Connect until it succeeds or the attempts run out.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	return s.connect(ctx, "reconnecting")
}

func (s *Supervisor) connect(ctx context.Context, action string) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.logger.Info(action, "attempt", attempt, "max_attempts", s.backoff.attempts())
		err := s.conn.Connect(ctx)
		if err == nil {
			s.logger.Info("connected", "attempt", attempt)
			return nil
		}
		lastErr = err

		retry, delay := s.backoff.ShouldRetry(attempt)
		if !retry {
			break
		}

		s.logger.Warn("connect failed", "attempt", attempt, "retry_in", delay, "error", err)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}

	s.logger.Error("giving up on connection", "attempts", s.backoff.attempts(), "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, s.backoff.attempts(), lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

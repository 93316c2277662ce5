// ABOUTME: Collaborator interfaces the dispatcher calls into
// ABOUTME: Messenger, MediaSource and Clock, plus the send error type

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/coven-script/internal/media"
	"github.com/2389/coven-script/internal/script"
)

// Messenger is the chat platform capability the dispatcher drives.
// Implementations surface connectivity failures as errors.
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendMedia(ctx context.Context, conversationID string, m *media.Media, opts media.SendOptions) error
	SetIndicator(ctx context.Context, conversationID string, kind script.IndicatorKind) error
}

// MediaSource loads media referenced by script steps.
type MediaSource interface {
	Open(ref string) (*media.Media, error)
}

// Clock sleeps between scripted steps.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock sleeps on the wall clock, returning early if ctx is cancelled.
type SystemClock struct{}

// Sleep implements Clock.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendError wraps a failure returned by the Messenger.
type SendError struct {
	Op             string // "text", "media", "indicator"
	ConversationID string
	Err            error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s to %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

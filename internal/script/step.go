// ABOUTME: Step types that make up a stage's scripted action list
// ABOUTME: Wait, Indicator, SendText and SendMedia are pure data interpreted by the dispatcher

package script

import (
	"fmt"
	"time"
)

// IndicatorKind is a transient presence signal shown to the remote party.
type IndicatorKind string

const (
	IndicatorTyping    IndicatorKind = "typing"
	IndicatorRecording IndicatorKind = "recording"
)

// Valid reports whether k is a known indicator kind.
func (k IndicatorKind) Valid() bool {
	return k == IndicatorTyping || k == IndicatorRecording
}

// Step is one timed action within a stage.
type Step interface {
	// Describe returns a short human-readable label used in logs.
	Describe() string
}

// Wait pauses the stage for Duration.
type Wait struct {
	Duration time.Duration
}

// Indicator shows a typing or recording presence.
type Indicator struct {
	Kind IndicatorKind
}

// SendText sends a text message.
type SendText struct {
	Text string
}

// SendMedia sends a media file from the media library.
type SendMedia struct {
	Ref      string // path relative to the media directory
	Caption  string
	Voice    bool // audio delivered as a voice note
	ViewOnce bool
	// Optional media failures are logged and skipped instead of aborting the stage.
	Optional bool
}

func (w Wait) Describe() string      { return fmt.Sprintf("wait %s", w.Duration) }
func (i Indicator) Describe() string { return fmt.Sprintf("indicator %s", i.Kind) }
func (s SendText) Describe() string  { return fmt.Sprintf("text (%d chars)", len([]rune(s.Text))) }
func (m SendMedia) Describe() string { return fmt.Sprintf("media %s", m.Ref) }

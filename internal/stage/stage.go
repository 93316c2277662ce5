// ABOUTME: Closed enumeration of conversation stages and their fixed successor order
// ABOUTME: Provides parsing, naming, and pass-through/terminal markers for each stage

package stage

import (
	"errors"
	"fmt"
)

// ErrUnknownStage is returned when a stage name is not part of the enumeration.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is one step in the fixed conversation sequence.
type Stage uint8

const (
	// Unknown is the zero value. Stored names this build does not recognize
	// decode to Unknown.
	Unknown Stage = iota
	Initial
	WaitingPreview
	WaitingPeladinha
	WaitingPromise
	WaitingForPriceResponse
	WaitingFinalPromise
	SendingLink
	WaitingBeforeAudio6
	WaitingAfterAudio6
)

// First is the stage every new conversation starts at.
const First = Initial

// Last is the terminal stage.
const Last = WaitingAfterAudio6

var names = [...]string{
	Unknown:                 "unknown",
	Initial:                 "initial",
	WaitingPreview:          "waiting_preview",
	WaitingPeladinha:        "waiting_peladinha",
	WaitingPromise:          "waiting_promise",
	WaitingForPriceResponse: "waiting_for_price_response",
	WaitingFinalPromise:     "waiting_final_promise",
	SendingLink:             "sending_link",
	WaitingBeforeAudio6:     "waiting_before_audio6",
	WaitingAfterAudio6:      "waiting_after_audio6",
}

// All returns every valid stage in conversation order.
func All() []Stage {
	out := make([]Stage, 0, int(Last))
	for s := First; s <= Last; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s is part of the enumeration.
func (s Stage) Valid() bool {
	return s >= First && s <= Last
}

// String returns the stage's canonical name.
func (s Stage) String() string {
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Next returns the successor of s. The second result is false for the terminal
// stage and for invalid stages.
func (s Stage) Next() (Stage, bool) {
	if !s.Valid() || s == Last {
		return Unknown, false
	}
	return s + 1, true
}

// IsTerminal reports whether completing s finalizes the conversation.
func (s Stage) IsTerminal() bool {
	return s == Last
}

// IsPassThrough reports whether s performs no action of its own and cascades
// into its successor within the same dispatch.
func (s Stage) IsPassThrough() bool {
	return s == WaitingForPriceResponse
}

// Parse converts a canonical stage name back into a Stage.
func Parse(name string) (Stage, error) {
	for s := First; s <= Last; s++ {
		if names[s] == name {
			return s, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ABOUTME: Tests for the stage enumeration
// ABOUTME: Covers ordering, successor chain, parsing, and text marshaling

package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_Order(t *testing.T) {
	want := []string{
		"initial",
		"waiting_preview",
		"waiting_peladinha",
		"waiting_promise",
		"waiting_for_price_response",
		"waiting_final_promise",
		"sending_link",
		"waiting_before_audio6",
		"waiting_after_audio6",
	}

	var got []string
	for _, s := range All() {
		got = append(got, s.String())
	}
	assert.Equal(t, want, got)
}

func TestNext_WalksChainWithoutCycles(t *testing.T) {
	seen := make(map[Stage]bool)
	s := First
	steps := 0
	for {
		require.False(t, seen[s], "stage %s visited twice", s)
		seen[s] = true
		next, ok := s.Next()
		if !ok {
			break
		}
		assert.Equal(t, s+1, next, "successor of %s must be the next stage", s)
		s = next
		steps++
	}

	assert.Equal(t, Last, s)
	assert.True(t, s.IsTerminal())
	assert.Len(t, seen, len(All()))
	assert.Equal(t, len(All())-1, steps)
}

func TestNext_InvalidStage(t *testing.T) {
	_, ok := Unknown.Next()
	assert.False(t, ok)

	_, ok = Stage(200).Next()
	assert.False(t, ok)
}

func TestIsPassThrough(t *testing.T) {
	for _, s := range All() {
		assert.Equal(t, s == WaitingForPriceResponse, s.IsPassThrough(), s.String())
	}
}

func TestParse(t *testing.T) {
	for _, s := range All() {
		parsed, err := Parse(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := Parse("waiting_forever")
	assert.ErrorIs(t, err, ErrUnknownStage)

	_, err = Parse("unknown")
	assert.ErrorIs(t, err, ErrUnknownStage, "the zero value name is not parseable")
}

func TestString_OutOfRange(t *testing.T) {
	assert.Equal(t, "stage(99)", Stage(99).String())
}

func TestTextMarshaling(t *testing.T) {
	text, err := SendingLink.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "sending_link", string(text))

	var s Stage
	require.NoError(t, s.UnmarshalText([]byte("waiting_promise")))
	assert.Equal(t, WaitingPromise, s)

	assert.Error(t, s.UnmarshalText([]byte("bogus")))
	_, err = Unknown.MarshalText()
	assert.ErrorIs(t, err, ErrUnknownStage)
}

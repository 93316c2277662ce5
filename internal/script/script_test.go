// ABOUTME: Tests for script loading and validation
// ABOUTME: Covers YAML and TOML parsing, named delays, and stage coverage rules

package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-script/internal/stage"
)

var testDelays = map[string]time.Duration{
	"typing":    5 * time.Second,
	"recording": 8 * time.Second,
}

// fullTable returns a minimal valid table with one text step per stage.
func fullTable() map[stage.Stage][]Step {
	table := make(map[stage.Stage][]Step)
	for _, st := range stage.All() {
		if st.IsPassThrough() {
			continue
		}
		table[st] = []Step{SendText{Text: "hello from " + st.String()}}
	}
	return table
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validYAML = `
stages:
  initial:
    - wait: typing
    - indicator: typing
    - wait: 1500ms
    - text: "Hi there"
    - indicator: recording
    - wait: recording
    - media: intro.ogg
      voice: true
  waiting_preview:
    - media: clip1.mp4
      view_once: true
      optional: true
    - text: "Did you like it?"
  waiting_peladinha:
    - text: "step three"
  waiting_promise:
    - text: "step four"
  waiting_for_price_response: []
  waiting_final_promise:
    - text: "step six"
  sending_link:
    - text: "https://example.com/pay"
  waiting_before_audio6:
    - media: outro.ogg
      voice: true
  waiting_after_audio6:
    - text: "bye"
`

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "script.yaml", validYAML)

	s, err := Load(path, testDelays)
	require.NoError(t, err)

	steps, ok := s.Steps(stage.Initial)
	require.True(t, ok)
	require.Len(t, steps, 7)
	assert.Equal(t, Wait{Duration: 5 * time.Second}, steps[0])
	assert.Equal(t, Indicator{Kind: IndicatorTyping}, steps[1])
	assert.Equal(t, Wait{Duration: 1500 * time.Millisecond}, steps[2])
	assert.Equal(t, SendText{Text: "Hi there"}, steps[3])
	assert.Equal(t, Indicator{Kind: IndicatorRecording}, steps[4])
	assert.Equal(t, Wait{Duration: 8 * time.Second}, steps[5])
	assert.Equal(t, SendMedia{Ref: "intro.ogg", Voice: true}, steps[6])

	preview, ok := s.Steps(stage.WaitingPreview)
	require.True(t, ok)
	assert.Equal(t, SendMedia{Ref: "clip1.mp4", ViewOnce: true, Optional: true}, preview[0])

	passThrough, ok := s.Steps(stage.WaitingForPriceResponse)
	assert.True(t, ok)
	assert.Empty(t, passThrough)
}

func TestLoad_TOML(t *testing.T) {
	content := `
[[stages.initial]]
wait = "typing"

[[stages.initial]]
text = "Hi there"

[[stages.waiting_preview]]
text = "two"

[[stages.waiting_peladinha]]
text = "three"

[[stages.waiting_promise]]
text = "four"

[[stages.waiting_final_promise]]
text = "six"

[[stages.sending_link]]
text = "seven"

[[stages.waiting_before_audio6]]
media = "outro.ogg"
voice = true

[[stages.waiting_after_audio6]]
text = "bye"
`
	path := writeFile(t, "script.toml", content)

	s, err := Load(path, testDelays)
	require.NoError(t, err)

	steps, ok := s.Steps(stage.Initial)
	require.True(t, ok)
	assert.Equal(t, []Step{Wait{Duration: 5 * time.Second}, SendText{Text: "Hi there"}}, steps)

	steps, ok = s.Steps(stage.WaitingBeforeAudio6)
	require.True(t, ok)
	assert.Equal(t, []Step{SendMedia{Ref: "outro.ogg", Voice: true}}, steps)

	// Pass-through stage may be omitted entirely.
	steps, ok = s.Steps(stage.WaitingForPriceResponse)
	assert.True(t, ok)
	assert.Empty(t, steps)
}

func TestLoad_ShippedExample(t *testing.T) {
	_, err := Load(filepath.Join("..", "..", "examples", "script.yaml"), map[string]time.Duration{
		"typing":         5 * time.Second,
		"recording":      8 * time.Second,
		"between_videos": 6 * time.Second,
		"between_audios": 10 * time.Second,
	})
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{
			name:    "unsupported extension",
			file:    "script.json",
			content: `{}`,
			wantErr: "unsupported script format",
		},
		{
			name:    "no stages",
			file:    "script.yaml",
			content: "stages: {}\n",
			wantErr: "no stages defined",
		},
		{
			name:    "unknown stage name",
			file:    "script.yaml",
			content: "stages:\n  bogus:\n    - text: hi\n",
			wantErr: "unknown stage",
		},
		{
			name:    "two actions in one step",
			file:    "script.yaml",
			content: "stages:\n  initial:\n    - text: hi\n      wait: typing\n",
			wantErr: "exactly one of",
		},
		{
			name:    "unknown delay",
			file:    "script.yaml",
			content: "stages:\n  initial:\n    - wait: forever\n",
			wantErr: "neither a named delay nor a duration",
		},
		{
			name:    "unknown indicator",
			file:    "script.yaml",
			content: "stages:\n  initial:\n    - indicator: dancing\n",
			wantErr: "unknown indicator",
		},
		{
			name:    "missing stages",
			file:    "script.yaml",
			content: "stages:\n  initial:\n    - text: hi\n",
			wantErr: "has no steps",
		},
		{
			name:    "malformed yaml",
			file:    "script.yaml",
			content: "stages: [",
			wantErr: "parsing script",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := Load(path, testDelays)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testDelays)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_Validation(t *testing.T) {
	s, err := New(fullTable())
	require.NoError(t, err)
	_, ok := s.Steps(stage.Unknown)
	assert.False(t, ok)

	withPassThroughSteps := fullTable()
	withPassThroughSteps[stage.WaitingForPriceResponse] = []Step{SendText{Text: "nope"}}
	_, err = New(withPassThroughSteps)
	assert.ErrorIs(t, err, ErrInvalidScript)

	missing := fullTable()
	delete(missing, stage.SendingLink)
	_, err = New(missing)
	assert.ErrorIs(t, err, ErrInvalidScript)

	invalidStage := fullTable()
	invalidStage[stage.Unknown] = []Step{SendText{Text: "x"}}
	_, err = New(invalidStage)
	assert.ErrorIs(t, err, ErrInvalidScript)

	emptyText := fullTable()
	emptyText[stage.Initial] = []Step{SendText{Text: "   "}}
	_, err = New(emptyText)
	assert.ErrorIs(t, err, ErrInvalidScript)

	negativeWait := fullTable()
	negativeWait[stage.Initial] = []Step{Wait{Duration: -time.Second}}
	_, err = New(negativeWait)
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestNew_CopiesTable(t *testing.T) {
	table := fullTable()
	s, err := New(table)
	require.NoError(t, err)

	table[stage.Initial][0] = SendText{Text: "mutated"}
	steps, _ := s.Steps(stage.Initial)
	assert.Equal(t, SendText{Text: "hello from initial"}, steps[0])
}

// ABOUTME: Tests for the check command's stage plan output
// ABOUTME: Builds a config and script in memory and inspects the printed tables

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-script/internal/config"
	"github.com/2389/coven-script/internal/script"
	"github.com/2389/coven-script/internal/stage"
)

func TestWritePlan(t *testing.T) {
	cfg, err := config.Parse([]byte("delays:\n  pause: 3s\n"))
	require.NoError(t, err)

	stages := make(map[stage.Stage][]script.Step)
	for _, st := range stage.All() {
		if !st.IsPassThrough() {
			stages[st] = []script.Step{script.SendText{Text: "hi"}}
		}
	}
	sc, err := script.New(stages)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writePlan(&out, cfg, sc))
	text := out.String()

	assert.Contains(t, text, "waiting_for_price_response")
	assert.Contains(t, text, "pass-through")
	assert.Contains(t, text, "finalizes")

	delays := text[strings.Index(text, "DELAY"):]
	assert.Less(t, strings.Index(delays, "between_audios"), strings.Index(delays, "pause"), "delays sorted by name")
	assert.Contains(t, delays, "3s")
	assert.Contains(t, delays, "10s")
}

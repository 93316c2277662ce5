// ABOUTME: Script table mapping each stage to its ordered step list
// ABOUTME: Loads YAML or TOML script files and validates them against the stage enumeration

package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-script/internal/stage"
)

// ErrInvalidScript is returned when a script fails validation.
var ErrInvalidScript = errors.New("invalid script")

// Script maps every stage to the steps it runs. A Script is immutable once built.
type Script struct {
	stages map[stage.Stage][]Step
}

// New builds a Script from a stage table and validates it.
func New(stages map[stage.Stage][]Step) (*Script, error) {
	s := &Script{stages: make(map[stage.Stage][]Step, len(stages))}
	for st, steps := range stages {
		s.stages[st] = append([]Step(nil), steps...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Steps returns the step list for st. The second result is false when st is
// not a stage this script can dispatch.
func (s *Script) Steps(st stage.Stage) ([]Step, bool) {
	if !st.Valid() {
		return nil, false
	}
	steps, ok := s.stages[st]
	if !ok && st.IsPassThrough() {
		return nil, true
	}
	return steps, ok
}

// Validate checks that the script covers the full stage enumeration.
func (s *Script) Validate() error {
	for st := range s.stages {
		if !st.Valid() {
			return fmt.Errorf("%w: stage %s is not part of the conversation", ErrInvalidScript, st)
		}
	}

	for _, st := range stage.All() {
		steps := s.stages[st]
		if st.IsPassThrough() {
			if len(steps) > 0 {
				return fmt.Errorf("%w: pass-through stage %s must not have steps", ErrInvalidScript, st)
			}
			continue
		}
		if len(steps) == 0 {
			return fmt.Errorf("%w: stage %s has no steps", ErrInvalidScript, st)
		}
		for i, step := range steps {
			if err := validateStep(step); err != nil {
				return fmt.Errorf("%w: stage %s step %d: %v", ErrInvalidScript, st, i+1, err)
			}
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch v := step.(type) {
	case Wait:
		if v.Duration < 0 {
			return fmt.Errorf("negative wait %s", v.Duration)
		}
	case Indicator:
		if !v.Kind.Valid() {
			return fmt.Errorf("unknown indicator %q", v.Kind)
		}
	case SendText:
		if strings.TrimSpace(v.Text) == "" {
			return fmt.Errorf("empty text")
		}
	case SendMedia:
		if v.Ref == "" {
			return fmt.Errorf("empty media reference")
		}
	default:
		return fmt.Errorf("unsupported step type %T", step)
	}
	return nil
}

// rawFile is the on-disk shape of a script file.
type rawFile struct {
	Stages map[string][]rawStep `yaml:"stages" toml:"stages"`
}

// rawStep sets exactly one of Wait, Indicator, Text, or Media.
type rawStep struct {
	Wait      string `yaml:"wait" toml:"wait"`
	Indicator string `yaml:"indicator" toml:"indicator"`
	Text      string `yaml:"text" toml:"text"`
	Media     string `yaml:"media" toml:"media"`
	Caption   string `yaml:"caption" toml:"caption"`
	Voice     bool   `yaml:"voice" toml:"voice"`
	ViewOnce  bool   `yaml:"view_once" toml:"view_once"`
	Optional  bool   `yaml:"optional" toml:"optional"`
}

// Load reads a script file. The format is chosen by extension: .yaml/.yml or .toml.
// Wait steps may name a delay from delays ("typing") or give a literal duration ("2s").
func Load(path string, delays map[string]time.Duration) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}

	var raw rawFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing script: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("parsing script: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported script format %q (want .yaml, .yml or .toml)", ext)
	}

	return build(raw, delays)
}

func build(raw rawFile, delays map[string]time.Duration) (*Script, error) {
	if len(raw.Stages) == 0 {
		return nil, fmt.Errorf("%w: no stages defined", ErrInvalidScript)
	}

	table := make(map[stage.Stage][]Step, len(raw.Stages))
	for name, rawSteps := range raw.Stages {
		st, err := stage.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
		}
		steps := make([]Step, 0, len(rawSteps))
		for i, rs := range rawSteps {
			step, err := rs.toStep(delays)
			if err != nil {
				return nil, fmt.Errorf("%w: stage %s step %d: %v", ErrInvalidScript, st, i+1, err)
			}
			steps = append(steps, step)
		}
		table[st] = steps
	}

	return New(table)
}

func (r rawStep) toStep(delays map[string]time.Duration) (Step, error) {
	set := 0
	for _, v := range []string{r.Wait, r.Indicator, r.Text, r.Media} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of wait, indicator, text, media must be set (got %d)", set)
	}

	switch {
	case r.Wait != "":
		d, err := resolveDelay(r.Wait, delays)
		if err != nil {
			return nil, err
		}
		return Wait{Duration: d}, nil
	case r.Indicator != "":
		kind := IndicatorKind(r.Indicator)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown indicator %q (want typing or recording)", r.Indicator)
		}
		return Indicator{Kind: kind}, nil
	case r.Text != "":
		return SendText{Text: r.Text}, nil
	default:
		return SendMedia{
			Ref:      r.Media,
			Caption:  r.Caption,
			Voice:    r.Voice,
			ViewOnce: r.ViewOnce,
			Optional: r.Optional,
		}, nil
	}
}

// resolveDelay looks up a named delay, falling back to time.ParseDuration.
func resolveDelay(value string, delays map[string]time.Duration) (time.Duration, error) {
	if d, ok := delays[value]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("wait %q is neither a named delay nor a duration", value)
	}
	return d, nil
}

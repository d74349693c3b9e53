// protocol.go
package models

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"kbtrial/internal/keys"
	"kbtrial/internal/trial"
)

var ErrProtocolEmpty = errors.New("protocol defines no trials")

// TrialSpec matches one entry of the protocol YAML. Pointer fields are
// optional and fall back to the trial defaults.
type TrialSpec struct {
	ID                string    `yaml:"id" json:"id"`
	Stimulus          string    `yaml:"stimulus" json:"stimulus"`
	Choices           *keys.Set `yaml:"choices,omitempty" json:"choices,omitempty"`
	InvalidChoices    *keys.Set `yaml:"invalid_choices,omitempty" json:"invalid_choices,omitempty"`
	Prompt            string    `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	StimulusDuration  *int      `yaml:"stimulus_duration,omitempty" json:"stimulus_duration,omitempty"`
	TrialDuration     *int      `yaml:"trial_duration,omitempty" json:"trial_duration,omitempty"`
	ResponseEndsTrial *bool     `yaml:"response_ends_trial,omitempty" json:"response_ends_trial,omitempty"`
	Repeat            int       `yaml:"repeat,omitempty" json:"repeat,omitempty"`
}

// Config converts the entry into a trial configuration. A duration that is set
// is always scheduled, with negative values treated as zero.
func (s TrialSpec) Config() trial.Config {
	cfg := trial.DefaultConfig(s.Stimulus)
	cfg.Prompt = s.Prompt
	if s.Choices != nil {
		cfg.Choices = *s.Choices
	}
	if s.InvalidChoices != nil {
		cfg.InvalidChoices = *s.InvalidChoices
	}
	if s.StimulusDuration != nil {
		cfg.StimulusDuration = trial.Delay(time.Duration(*s.StimulusDuration) * time.Millisecond)
	}
	if s.TrialDuration != nil {
		cfg.TrialDuration = trial.Delay(time.Duration(*s.TrialDuration) * time.Millisecond)
	}
	if s.ResponseEndsTrial != nil {
		cfg.ResponseEndsTrial = *s.ResponseEndsTrial
	}
	return cfg
}

// Protocol is a named sequence of trials.
type Protocol struct {
	Name           string      `yaml:"name"`
	RandomizeOrder bool        `yaml:"randomize_order"`
	Trials         []TrialSpec `yaml:"trials"`
}

// LoadProtocol reads and parses a protocol YAML file
func LoadProtocol(path string) (*Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol file: %w", err)
	}
	return ParseProtocol(data)
}

// ParseProtocol parses protocol YAML and fills in trial ids.
func ParseProtocol(data []byte) (*Protocol, error) {
	var protocol Protocol
	if err := yaml.Unmarshal(data, &protocol); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protocol YAML: %w", err)
	}
	if len(protocol.Trials) == 0 {
		return nil, ErrProtocolEmpty
	}
	for i := range protocol.Trials {
		if protocol.Trials[i].ID == "" {
			protocol.Trials[i].ID = fmt.Sprintf("trial-%d", i+1)
		}
	}
	return &protocol, nil
}

// Timeline expands repeated entries and, if the protocol asks for it,
// shuffles the result. Every call returns a fresh slice.
func (p *Protocol) Timeline() []TrialSpec {
	timeline := make([]TrialSpec, 0, len(p.Trials))
	for _, t := range p.Trials {
		n := t.Repeat
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			timeline = append(timeline, t)
		}
	}
	if p.RandomizeOrder {
		ShuffleTrials(timeline)
	}
	return timeline
}

// ShuffleTrials randomizes the order of trials
func ShuffleTrials(trials []TrialSpec) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(trials), func(i, j int) {
		trials[i], trials[j] = trials[j], trials[i]
	})
}

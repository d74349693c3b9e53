package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProtocol = `
name: flanker-demo
trials:
  - id: fixation
    stimulus: "<p>+</p>"
    choices: none
    trial_duration: 500
  - stimulus: "<p>&lt;&lt;&gt;&lt;&lt;</p>"
    choices: [f, j]
    invalid_choices: [space]
    prompt: "<p>F = left, J = right</p>"
    stimulus_duration: 200
    trial_duration: 2000
    response_ends_trial: false
    repeat: 3
`

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol([]byte(sampleProtocol))
	require.NoError(t, err)
	assert.Equal(t, "flanker-demo", p.Name)
	require.Len(t, p.Trials, 2)
	assert.Equal(t, "trial-2", p.Trials[1].ID)

	fixation := p.Trials[0].Config()
	assert.True(t, fixation.Choices.IsNone())
	assert.True(t, fixation.InvalidChoices.IsNone())
	require.NotNil(t, fixation.TrialDuration)
	assert.Equal(t, 500*time.Millisecond, *fixation.TrialDuration)
	assert.Nil(t, fixation.StimulusDuration)
	assert.True(t, fixation.ResponseEndsTrial)

	flanker := p.Trials[1].Config()
	assert.True(t, flanker.Choices.Contains("F"))
	assert.False(t, flanker.Choices.Contains("space"))
	assert.True(t, flanker.InvalidChoices.Contains(" "))
	assert.Equal(t, 200*time.Millisecond, *flanker.StimulusDuration)
	assert.Equal(t, 2*time.Second, *flanker.TrialDuration)
	assert.False(t, flanker.ResponseEndsTrial)
	assert.Equal(t, "<p>F = left, J = right</p>", flanker.Prompt)
}

func TestDefaultsWhenOmitted(t *testing.T) {
	p, err := ParseProtocol([]byte("trials:\n  - stimulus: x\n"))
	require.NoError(t, err)
	cfg := p.Trials[0].Config()
	assert.True(t, cfg.Choices.IsAll())
	assert.True(t, cfg.InvalidChoices.IsNone())
	assert.True(t, cfg.ResponseEndsTrial)
	assert.Nil(t, cfg.TrialDuration)
	assert.Nil(t, cfg.StimulusDuration)
}

func TestExplicitZeroDurationsAreKept(t *testing.T) {
	p, err := ParseProtocol([]byte("trials:\n  - stimulus: x\n    choices: none\n    stimulus_duration: 0\n    trial_duration: -5\n"))
	require.NoError(t, err)
	cfg := p.Trials[0].Config()
	require.NotNil(t, cfg.StimulusDuration)
	require.NotNil(t, cfg.TrialDuration)
	assert.Zero(t, *cfg.StimulusDuration)
	assert.Zero(t, *cfg.TrialDuration)
}

func TestEmptyProtocol(t *testing.T) {
	_, err := ParseProtocol([]byte("name: nothing\n"))
	assert.ErrorIs(t, err, ErrProtocolEmpty)
}

func TestTimelineExpandsRepeats(t *testing.T) {
	p, err := ParseProtocol([]byte(sampleProtocol))
	require.NoError(t, err)
	timeline := p.Timeline()
	require.Len(t, timeline, 4)
	assert.Equal(t, "fixation", timeline[0].ID)
	for _, spec := range timeline[1:] {
		assert.Equal(t, "trial-2", spec.ID)
	}

	p.RandomizeOrder = true
	assert.ElementsMatch(t, timeline, p.Timeline())
}

func TestLoadProtocol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProtocol), 0o644))

	p, err := LoadProtocol(path)
	require.NoError(t, err)
	assert.Len(t, p.Trials, 2)

	_, err = LoadProtocol(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package trial

import (
	"time"

	"kbtrial/internal/keys"
)

// Config describes one keyboard-response trial.
type Config struct {
	Stimulus       string
	Choices        keys.Set
	InvalidChoices keys.Set
	// Prompt is drawn below the stimulus when non-empty.
	Prompt string
	// StimulusDuration hides the stimulus after this delay. Nil disables; a
	// zero delay hides it as soon as the scheduler runs.
	StimulusDuration *time.Duration
	// TrialDuration ends the trial after this delay. Nil disables.
	TrialDuration     *time.Duration
	ResponseEndsTrial bool
}

// Delay returns d as an optional duration, clamping negative values to zero.
func Delay(d time.Duration) *time.Duration {
	if d < 0 {
		d = 0
	}
	return &d
}

// DefaultConfig returns a config with the documented defaults: every key is a
// valid response, no key is invalid, and a response ends the trial.
func DefaultConfig(stimulus string) Config {
	return Config{
		Stimulus:          stimulus,
		Choices:           keys.All(),
		InvalidChoices:    keys.None(),
		ResponseEndsTrial: true,
	}
}

// invalidRouting returns the keys routed to the invalid listener. A key that
// is both valid and invalid counts as valid.
func (c Config) invalidRouting() keys.Set {
	return c.InvalidChoices.Without(c.Choices)
}

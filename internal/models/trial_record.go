package models

import (
	"time"

	"kbtrial/internal/trial"
)

// TrialRecord is the stored form of a trial result.
type TrialRecord struct {
	ID               uint                    `gorm:"primaryKey" json:"-"`
	SessionID        string                  `gorm:"size:20;uniqueIndex:idx_session_trial" json:"session_id"`
	TrialIndex       int                     `gorm:"uniqueIndex:idx_session_trial" json:"trial_index"`
	TrialID          string                  `json:"trial_id"`
	Stimulus         string                  `json:"stimulus"`
	RT               *float64                `json:"rt"`        // Pointer to allow null
	KeyPress         *string                 `json:"key_press"` // Pointer to allow null
	InvalidCount     int                     `json:"invalid_count"`
	InvalidResponses []trial.InvalidResponse `gorm:"serializer:json" json:"responses_invalid"`
	CreatedAt        time.Time               `json:"created_at"`
}

// NewTrialRecord flattens a result for storage.
func NewTrialRecord(sessionID string, index int, trialID string, r trial.Result) TrialRecord {
	return TrialRecord{
		SessionID:        sessionID,
		TrialIndex:       index,
		TrialID:          trialID,
		Stimulus:         r.Stimulus,
		RT:               r.RT,
		KeyPress:         r.KeyPress,
		InvalidCount:     r.InvalidCount,
		InvalidResponses: r.InvalidResponses,
	}
}

// Result rebuilds the emitted record.
func (t TrialRecord) Result() trial.Result {
	return trial.Result{
		RT:               t.RT,
		Stimulus:         t.Stimulus,
		KeyPress:         t.KeyPress,
		InvalidCount:     t.InvalidCount,
		InvalidResponses: t.InvalidResponses,
	}
}

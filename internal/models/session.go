package models

import "time"

// Session is one participant's run through a protocol.
type Session struct {
	ID            string    `gorm:"primaryKey;size:20" json:"id"`
	ParticipantID string    `gorm:"index;size:20" json:"participant_id"`
	Protocol      string    `json:"protocol"`
	TrialCount    int       `json:"trial_count"`
	IsComplete    bool      `json:"is_complete"`
	IsAborted     bool      `json:"is_aborted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

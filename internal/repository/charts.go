package repository

import (
	"context"
)

// ReactionTimePoint is one responded trial on a reaction-time chart.
type ReactionTimePoint struct {
	TrialIndex   int     `json:"trialIndex"`
	TrialID      string  `json:"trialId"`
	RT           float64 `json:"rt"`
	InvalidCount int     `json:"invalidCount"`
}

// GetReactionTimes returns the reaction times of the trials in a session that
// received a valid response.
func (r *Repository) GetReactionTimes(ctx context.Context, sessionID string) ([]ReactionTimePoint, error) {
	var data []ReactionTimePoint
	err := r.db.WithContext(ctx).Raw(`
		SELECT trial_index, trial_id, rt, invalid_count
		FROM trial_records
		WHERE session_id = ? AND rt IS NOT NULL
		ORDER BY trial_index`, sessionID).Scan(&data).Error
	return data, err
}

package repository

import (
	"context"

	"kbtrial/internal/models"
)

// SaveTrialRecord stores one emitted trial result.
func (r *Repository) SaveTrialRecord(ctx context.Context, record *models.TrialRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetTrialRecords returns a session's trial results in trial order.
func (r *Repository) GetTrialRecords(ctx context.Context, sessionID string) ([]models.TrialRecord, error) {
	var records []models.TrialRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("trial_index").
		Find(&records).Error
	return records, err
}

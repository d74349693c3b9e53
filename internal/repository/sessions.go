package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kbtrial/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Repository persists sessions and trial results.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSession(ctx context.Context, session *models.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns the most recently updated sessions first.
func (r *Repository) ListSessions(ctx context.Context, limit int) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

func (r *Repository) CompleteSession(ctx context.Context, id string, aborted bool) error {
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_complete": !aborted, "is_aborted": aborted})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

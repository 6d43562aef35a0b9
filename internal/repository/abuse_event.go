package repository

import (
	"context"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/storage"
)

type AbuseEventRepository struct {
	db *storage.Postgres
}

func NewAbuseEventRepository(db *storage.Postgres) *AbuseEventRepository {
	return &AbuseEventRepository{db: db}
}

func (r *AbuseEventRepository) Create(ctx context.Context, event *models.AbuseEvent) error {
	return r.db.DB.WithContext(ctx).Create(event).Error
}

func (r *AbuseEventRepository) ListRecent(ctx context.Context, limit int) ([]models.AbuseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.AbuseEvent
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

func (r *AbuseEventRepository) ListByIdentifier(ctx context.Context, identifier string, limit int) ([]models.AbuseEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []models.AbuseEvent
	err := r.db.DB.WithContext(ctx).
		Where("identifier = ?", identifier).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error

	return events, err
}

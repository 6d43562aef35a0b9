package repository

import (
	"context"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/storage"
	"gorm.io/gorm/clause"
)

type TierRepository struct {
	db *storage.Postgres
}

func NewTierRepository(db *storage.Postgres) *TierRepository {
	return &TierRepository{db: db}
}

// Seed upserts the configured plan tiers so the table mirrors config.
func (r *TierRepository) Seed(ctx context.Context, tiers []models.PlanTier) error {
	if len(tiers) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).
		Create(&tiers).Error
}

func (r *TierRepository) List(ctx context.Context) ([]models.PlanTier, error) {
	var tiers []models.PlanTier
	err := r.db.DB.WithContext(ctx).
		Order("name").
		Find(&tiers).Error

	return tiers, err
}

package repository

import (
	"context"
	"time"

	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/storage"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *storage.Postgres
}

func NewAccountRepository(db *storage.Postgres) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.DB.WithContext(ctx).Create(account).Error
}

// Retrieves an account by its rate-limit identifier
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	var account models.Account
	err := r.db.DB.WithContext(ctx).
		Where("identifier = ?", identifier).
		First(&account).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &account, err
}

// UpdateStatus flips the status fields and nothing else. The engine never
// creates or deletes accounts, only moves them through the state machine.
func (r *AccountRepository) UpdateStatus(ctx context.Context, identifier string, status models.AccountStatus, reason string, suspendedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":        status,
		"status_reason": reason,
		"suspended_at":  suspendedAt,
	}

	return r.db.DB.WithContext(ctx).
		Model(&models.Account{}).
		Where("identifier = ?", identifier).
		Updates(updates).Error
}

func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&accounts).Error

	return accounts, err
}

func (r *AccountRepository) ListByStatus(ctx context.Context, status models.AccountStatus) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.DB.WithContext(ctx).
		Where("status = ?", status).
		Order("updated_at DESC").
		Find(&accounts).Error

	return accounts, err
}

package service

import (
	"context"
	"fmt"

	"github.com/pulsemetrics/guardrail/internal/counter"
	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/repository"
	"github.com/pulsemetrics/guardrail/internal/suspension"
)

// AdminService backs the operator console: counter resets, manual
// suspend/unsuspend, and the audit views.
type AdminService struct {
	store    counter.Store
	machine  *suspension.StateMachine
	accounts *repository.AccountRepository
	events   *repository.AbuseEventRepository
}

func NewAdminService(store counter.Store, machine *suspension.StateMachine, accounts *repository.AccountRepository, events *repository.AbuseEventRepository) *AdminService {
	return &AdminService{
		store:    store,
		machine:  machine,
		accounts: accounts,
		events:   events,
	}
}

// ResetCounters clears every window for the identifier under both kinds,
// so a reset holds no matter how the traffic was keyed.
func (s *AdminService) ResetCounters(ctx context.Context, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	for _, kind := range []models.IdentifierKind{models.KindUser, models.KindIP} {
		if err := s.store.Remove(ctx, identifier, kind, ""); err != nil {
			return fmt.Errorf("failed to reset %s counters: %w", kind, err)
		}
	}

	return nil
}

func (s *AdminService) Unsuspend(ctx context.Context, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}

	return s.machine.Unsuspend(ctx, identifier)
}

// Suspend is the manual administrative suspension.
func (s *AdminService) Suspend(ctx context.Context, identifier string, reason string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if reason == "" {
		return fmt.Errorf("reason is required")
	}

	s.machine.Suspend(ctx, identifier, models.KindUser, []string{"manual: " + reason})
	return nil
}

func (s *AdminService) GetAccount(ctx context.Context, identifier string) (*models.Account, error) {
	return s.accounts.FindByIdentifier(ctx, identifier)
}

func (s *AdminService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.accounts.List(ctx)
}

func (s *AdminService) RecentEvents(ctx context.Context, limit int) ([]models.AbuseEvent, error) {
	return s.events.ListRecent(ctx, limit)
}

func (s *AdminService) EventsFor(ctx context.Context, identifier string, limit int) ([]models.AbuseEvent, error) {
	return s.events.ListByIdentifier(ctx, identifier, limit)
}

package plans

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
)

// Service exposes read-only catalog lookups. Nothing in the lifecycle engine
// ever writes a plan; the catalog is managed out of band.
type Service interface {
	Get(ctx context.Context, id string) (*models.Plan, error)
	Resolve(ctx context.Context, id string) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
}

type service struct {
	repo Repository
}

// NewService wires a plan catalog service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("plan repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	}
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	return plan, nil
}

// Resolve returns the plan for the given id, falling back to the catalog
// default when no id is supplied. Archived plans resolve for existing
// subscriptions but are rejected for new signups by the caller.
func (s *service) Resolve(ctx context.Context, id string) (*models.Plan, error) {
	if strings.TrimSpace(id) != "" {
		return s.Get(ctx, id)
	}
	plan, err := s.repo.GetDefault(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no default plan configured")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load default plan")
	}
	return plan, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListByStatus(ctx, enums.PlanStatusActive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	return plans, nil
}

package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pennyledger/pledger-backend/pkg/db/models"
	"github.com/pennyledger/pledger-backend/pkg/enums"
	pkgerrors "github.com/pennyledger/pledger-backend/pkg/errors"
)

type stubPlanRepo struct {
	plan  *models.Plan
	def   *models.Plan
	plans []models.Plan
	err   error
}

func (s *stubPlanRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPlanRepo) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func (s *stubPlanRepo) GetDefault(ctx context.Context) (*models.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.def, nil
}

func (s *stubPlanRepo) ListByStatus(ctx context.Context, status enums.PlanStatus) ([]models.Plan, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plans, nil
}

func basePlan() *models.Plan {
	return &models.Plan{
		ID:           "pro",
		Name:         "Pro",
		Status:       enums.PlanStatusActive,
		MonthlyPrice: decimal.RequireFromString("29.99"),
		AnnualPrice:  decimal.RequireFromString("299.00"),
		TrialDays:    14,
	}
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error creating service without repo")
	}
}

func TestServiceGetSuccess(t *testing.T) {
	svc, err := NewService(&stubPlanRepo{plan: basePlan()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	plan, err := svc.Get(context.Background(), "pro")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan.ID != "pro" || plan.TrialDays != 14 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestServiceGetValidatesID(t *testing.T) {
	svc, _ := NewService(&stubPlanRepo{plan: basePlan()})
	_, err := svc.Get(context.Background(), "  ")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestServiceGetNotFound(t *testing.T) {
	svc, _ := NewService(&stubPlanRepo{err: gorm.ErrRecordNotFound})
	_, err := svc.Get(context.Background(), "ghost")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestServiceGetDependencyError(t *testing.T) {
	svc, _ := NewService(&stubPlanRepo{err: errors.New("boom")})
	_, err := svc.Get(context.Background(), "pro")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency code, got %v", err)
	}
}

func TestServiceResolveFallsBackToDefault(t *testing.T) {
	def := basePlan()
	def.ID = "free"
	def.IsDefault = true
	svc, _ := NewService(&stubPlanRepo{def: def})

	plan, err := svc.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.ID != "free" {
		t.Fatalf("expected default plan, got %s", plan.ID)
	}
}

func TestServiceResolveNoDefaultConfigured(t *testing.T) {
	svc, _ := NewService(&stubPlanRepo{err: gorm.ErrRecordNotFound})
	_, err := svc.Resolve(context.Background(), "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestServiceListActive(t *testing.T) {
	svc, _ := NewService(&stubPlanRepo{plans: []models.Plan{*basePlan()}})
	plans, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != "pro" {
		t.Fatalf("unexpected plans %+v", plans)
	}
}

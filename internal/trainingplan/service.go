// Package trainingplan lets coaches schedule the training days activities are matched against.
package trainingplan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// PlanInput carries the coach-editable plan fields.
type PlanInput struct {
	CustomerID      string
	Name            string
	Description     string
	SuccessCriteria string
	StartDate       time.Time
	EndDate         time.Time
}

// DayInput carries the coach-editable day fields.
type DayInput struct {
	Date           time.Time
	TrainingType   string
	Zone           string
	Terrain        string
	DistanceKm     *float64
	WorkoutDetails string
	DayOrder       int
}

// Service applies ownership rules on top of the plan repository.
type Service struct {
	plans     domain.TrainingPlanRepository
	customers domain.CustomerRepository
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(plans domain.TrainingPlanRepository, customers domain.CustomerRepository) *Service {
	return &Service{plans: plans, customers: customers, now: time.Now}
}

// CreatePlan creates an active plan for a customer the principal coaches.
func (s *Service) CreatePlan(ctx context.Context, principal domain.Principal, in PlanInput) (domain.TrainingPlan, error) {
	if principal.Role != domain.RoleCoach && principal.Role != domain.RoleAdmin {
		return domain.TrainingPlan{}, fmt.Errorf("%w: only coaches create plans", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.TrainingPlan{}, fmt.Errorf("%w: name is required", domain.ErrValidationFailed)
	}
	start, end := domain.CivilDate(in.StartDate), domain.CivilDate(in.EndDate)
	if in.StartDate.IsZero() || in.EndDate.IsZero() || end.Before(start) {
		return domain.TrainingPlan{}, fmt.Errorf("%w: plan needs a start date on or before its end date", domain.ErrValidationFailed)
	}

	customer, err := s.customers.Get(ctx, in.CustomerID)
	if err != nil {
		return domain.TrainingPlan{}, err
	}
	if customer == nil {
		return domain.TrainingPlan{}, domain.ErrCustomerNotFound
	}
	coachID := principal.ID
	if principal.Role == domain.RoleAdmin && customer.CoachID != nil {
		coachID = *customer.CoachID
	}
	if !principal.CanAccessCustomer(*customer) {
		return domain.TrainingPlan{}, fmt.Errorf("%w: customer is coached by someone else", domain.ErrForbidden)
	}

	now := s.now().UTC()
	plan := domain.TrainingPlan{
		ID:              uuid.NewString(),
		CoachID:         coachID,
		CustomerID:      customer.ID,
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		SuccessCriteria: in.SuccessCriteria,
		StartDate:       start,
		EndDate:         end,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		return domain.TrainingPlan{}, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns a plan and its days to its coach, its customer or an admin.
func (s *Service) GetPlan(ctx context.Context, principal domain.Principal, planID string) (*domain.TrainingPlan, []domain.TrainingDay, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, domain.ErrTrainingPlanNotFound
	}
	if !canRead(principal, *plan) {
		return nil, nil, fmt.Errorf("%w: plan belongs to another customer", domain.ErrForbidden)
	}
	days, err := s.plans.ListDaysByPlan(ctx, plan.ID)
	if err != nil {
		return nil, nil, err
	}
	return plan, days, nil
}

// AddDay schedules a day inside the plan's date range.
func (s *Service) AddDay(ctx context.Context, principal domain.Principal, planID string, in DayInput) (domain.TrainingDay, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return domain.TrainingDay{}, err
	}
	if plan == nil {
		return domain.TrainingDay{}, domain.ErrTrainingPlanNotFound
	}
	if !canWrite(principal, *plan) {
		return domain.TrainingDay{}, fmt.Errorf("%w: plan belongs to another coach", domain.ErrForbidden)
	}
	if err := validateDay(*plan, in); err != nil {
		return domain.TrainingDay{}, err
	}

	day := applyDay(domain.TrainingDay{ID: uuid.NewString(), PlanID: plan.ID}, in)
	if err := s.plans.CreateDay(ctx, day); err != nil {
		return domain.TrainingDay{}, fmt.Errorf("create training day: %w", err)
	}
	return day, nil
}

// UpdateDay edits a day. A claimed day keeps its date so its matched activity stays valid.
func (s *Service) UpdateDay(ctx context.Context, principal domain.Principal, dayID string, in DayInput) (domain.TrainingDay, error) {
	plan, day, err := s.ownedDay(ctx, principal, dayID)
	if err != nil {
		return domain.TrainingDay{}, err
	}
	if err := validateDay(*plan, in); err != nil {
		return domain.TrainingDay{}, err
	}
	if day.IsClaimed() && !domain.SameCivilDate(day.Date, in.Date) {
		return domain.TrainingDay{}, fmt.Errorf("%w: unmatch the activity before moving the day", domain.ErrTrainingDayClaimed)
	}

	updated := applyDay(*day, in)
	if err := s.plans.UpdateDay(ctx, updated); err != nil {
		return domain.TrainingDay{}, fmt.Errorf("update training day: %w", err)
	}
	return updated, nil
}

// DeleteDay removes an unclaimed day.
func (s *Service) DeleteDay(ctx context.Context, principal domain.Principal, dayID string) error {
	_, day, err := s.ownedDay(ctx, principal, dayID)
	if err != nil {
		return err
	}
	if day.IsClaimed() {
		return fmt.Errorf("%w: unmatch the activity before deleting the day", domain.ErrTrainingDayClaimed)
	}
	return s.plans.DeleteDay(ctx, dayID)
}

func (s *Service) ownedDay(ctx context.Context, principal domain.Principal, dayID string) (*domain.TrainingPlan, *domain.TrainingDay, error) {
	day, err := s.plans.GetDay(ctx, dayID)
	if err != nil {
		return nil, nil, err
	}
	if day == nil {
		return nil, nil, domain.ErrTrainingDayNotFound
	}
	plan, err := s.plans.GetPlanByDayID(ctx, dayID)
	if err != nil {
		return nil, nil, err
	}
	if plan == nil {
		return nil, nil, domain.ErrTrainingPlanNotFound
	}
	if !canWrite(principal, *plan) {
		return nil, nil, fmt.Errorf("%w: plan belongs to another coach", domain.ErrForbidden)
	}
	return plan, day, nil
}

func canRead(p domain.Principal, plan domain.TrainingPlan) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCoach:
		return plan.CoachID == p.ID
	case domain.RoleCustomer:
		return plan.CustomerID == p.ID
	}
	return false
}

func canWrite(p domain.Principal, plan domain.TrainingPlan) bool {
	return p.Role == domain.RoleAdmin || (p.Role == domain.RoleCoach && plan.CoachID == p.ID)
}

func validateDay(plan domain.TrainingPlan, in DayInput) error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: day date is required", domain.ErrValidationFailed)
	}
	d := domain.CivilDate(in.Date)
	if d.Before(plan.StartDate) || d.After(plan.EndDate) {
		return fmt.Errorf("%w: %s is outside the plan", domain.ErrValidationFailed, d.Format(time.DateOnly))
	}
	if strings.TrimSpace(in.TrainingType) == "" {
		return fmt.Errorf("%w: training type is required", domain.ErrValidationFailed)
	}
	if in.DistanceKm != nil && *in.DistanceKm < 0 {
		return fmt.Errorf("%w: distance must not be negative", domain.ErrValidationFailed)
	}
	if in.DayOrder < 0 {
		return fmt.Errorf("%w: day order must not be negative", domain.ErrValidationFailed)
	}
	return nil
}

func applyDay(day domain.TrainingDay, in DayInput) domain.TrainingDay {
	day.Date = domain.CivilDate(in.Date)
	day.TrainingType = strings.TrimSpace(in.TrainingType)
	day.Zone = in.Zone
	day.Terrain = in.Terrain
	day.DistanceKm = in.DistanceKm
	day.WorkoutDetails = in.WorkoutDetails
	day.DayOrder = in.DayOrder
	return day
}

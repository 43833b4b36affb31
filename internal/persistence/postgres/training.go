package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

const (
	planColumns = `plan_id, coach_id, customer_id, name, description, success_criteria, start_date, end_date, is_active, created_at, updated_at`
	dayColumns  = `day_id, plan_id, day_date, training_type, zone, terrain, distance_km, workout_details, day_order, matched_activity_id`
)

// TrainingPlanRepository stores plans and days and implements the conditional day claim.
type TrainingPlanRepository struct {
	pool *pgxpool.Pool
}

// NewTrainingPlanRepository constructs a TrainingPlanRepository.
func NewTrainingPlanRepository(pool *pgxpool.Pool) *TrainingPlanRepository {
	return &TrainingPlanRepository{pool: pool}
}

// CreatePlan implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) CreatePlan(ctx context.Context, p domain.TrainingPlan) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `INSERT INTO training_plans (`+planColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.CoachID, p.CustomerID, p.Name, p.Description, p.SuccessCriteria,
		domain.CivilDate(p.StartDate), domain.CivilDate(p.EndDate), p.IsActive, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetPlan implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) GetPlan(ctx context.Context, planID string) (*domain.TrainingPlan, error) {
	return scanOptionalPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM training_plans WHERE plan_id=$1`, planID))
}

// GetPlanByDayID resolves the plan owning dayID.
func (r *TrainingPlanRepository) GetPlanByDayID(ctx context.Context, dayID string) (*domain.TrainingPlan, error) {
	const query = `SELECT p.plan_id, p.coach_id, p.customer_id, p.name, p.description, p.success_criteria,
            p.start_date, p.end_date, p.is_active, p.created_at, p.updated_at
        FROM training_plans p JOIN training_days d ON d.plan_id = p.plan_id
        WHERE d.day_id=$1`
	return scanOptionalPlan(r.pool.QueryRow(ctx, query, dayID))
}

// ListPlansByCustomer returns plans ordered by start date then id.
func (r *TrainingPlanRepository) ListPlansByCustomer(ctx context.Context, customerID string) ([]domain.TrainingPlan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM training_plans WHERE customer_id=$1 ORDER BY start_date, plan_id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TrainingPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) CreateDay(ctx context.Context, d domain.TrainingDay) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO training_days (`+dayColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.PlanID, domain.CivilDate(d.Date), d.TrainingType, d.Zone, d.Terrain, d.DistanceKm, d.WorkoutDetails, d.DayOrder, d.MatchedActivityID)
	return err
}

// GetDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) GetDay(ctx context.Context, dayID string) (*domain.TrainingDay, error) {
	d, err := scanDay(r.pool.QueryRow(ctx, `SELECT `+dayColumns+` FROM training_days WHERE day_id=$1`, dayID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListDaysByPlan returns days ordered by date, day order, then id.
func (r *TrainingPlanRepository) ListDaysByPlan(ctx context.Context, planID string) ([]domain.TrainingDay, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+dayColumns+` FROM training_days WHERE plan_id=$1 ORDER BY day_date, day_order, day_id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TrainingDay, 0)
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDay rewrites the scheduling fields of a day; the match pointer is owned by the matcher.
func (r *TrainingPlanRepository) UpdateDay(ctx context.Context, d domain.TrainingDay) error {
	tag, err := r.pool.Exec(ctx, `UPDATE training_days SET
            day_date=$2, training_type=$3, zone=$4, terrain=$5, distance_km=$6, workout_details=$7, day_order=$8
        WHERE day_id=$1`,
		d.ID, domain.CivilDate(d.Date), d.TrainingType, d.Zone, d.Terrain, d.DistanceKm, d.WorkoutDetails, d.DayOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrainingDayNotFound
	}
	return nil
}

// DeleteDay implements domain.TrainingPlanRepository.
func (r *TrainingPlanRepository) DeleteDay(ctx context.Context, dayID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM training_days WHERE day_id=$1`, dayID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrainingDayNotFound
	}
	return nil
}

// ClaimTrainingDay sets matched_activity_id only while it is NULL.
func (r *TrainingPlanRepository) ClaimTrainingDay(ctx context.Context, dayID, activityID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE training_days SET matched_activity_id=$2 WHERE day_id=$1 AND matched_activity_id IS NULL`, dayID, activityID)
	if err != nil {
		if isUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseTrainingDay clears matched_activity_id when activityID holds it.
func (r *TrainingPlanRepository) ReleaseTrainingDay(ctx context.Context, dayID, activityID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE training_days SET matched_activity_id=NULL WHERE day_id=$1 AND matched_activity_id=$2`, dayID, activityID)
	return err
}

func scanOptionalPlan(row pgx.Row) (*domain.TrainingPlan, error) {
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func scanPlan(row scanner) (domain.TrainingPlan, error) {
	var p domain.TrainingPlan
	err := row.Scan(&p.ID, &p.CoachID, &p.CustomerID, &p.Name, &p.Description, &p.SuccessCriteria,
		&p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanDay(row scanner) (domain.TrainingDay, error) {
	var d domain.TrainingDay
	err := row.Scan(&d.ID, &d.PlanID, &d.Date, &d.TrainingType, &d.Zone, &d.Terrain, &d.DistanceKm, &d.WorkoutDetails, &d.DayOrder, &d.MatchedActivityID)
	d.Date = domain.CivilDate(d.Date)
	return d, err
}

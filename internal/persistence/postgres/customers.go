package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// CustomerRepository reads and writes the Strava binding columns of customers.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository constructs a CustomerRepository.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Get implements domain.CustomerRepository.
func (r *CustomerRepository) Get(ctx context.Context, customerID string) (*domain.Customer, error) {
	const query = `SELECT customer_id, coach_id, name, strava_athlete_id, strava_connected_at, strava_last_sync
        FROM customers WHERE customer_id=$1`
	var c domain.Customer
	err := r.pool.QueryRow(ctx, query, customerID).Scan(&c.ID, &c.CoachID, &c.Name, &c.StravaAthleteID, &c.StravaConnectedAt, &c.StravaLastSync)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Save implements domain.CustomerRepository.
func (r *CustomerRepository) Save(ctx context.Context, c domain.Customer) error {
	const stmt = `INSERT INTO customers (customer_id, coach_id, name, strava_athlete_id, strava_connected_at, strava_last_sync)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (customer_id) DO UPDATE SET
            coach_id=EXCLUDED.coach_id,
            name=EXCLUDED.name,
            strava_athlete_id=EXCLUDED.strava_athlete_id,
            strava_connected_at=EXCLUDED.strava_connected_at,
            strava_last_sync=EXCLUDED.strava_last_sync`
	_, err := r.pool.Exec(ctx, stmt, c.ID, c.CoachID, c.Name, c.StravaAthleteID, c.StravaConnectedAt, c.StravaLastSync)
	return err
}

// UpdateLastSync implements domain.CustomerRepository.
func (r *CustomerRepository) UpdateLastSync(ctx context.Context, customerID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET strava_last_sync=$2 WHERE customer_id=$1`, customerID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

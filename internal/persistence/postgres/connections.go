package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

const connectionColumns = `customer_id, athlete_id, access_token, refresh_token, expires_at, scope, connected_at, last_sync_at`

// ConnectionStore persists Strava OAuth grants. athlete_id carries a unique index so webhook
// owners resolve to exactly one customer.
type ConnectionStore struct {
	pool *pgxpool.Pool
}

// NewConnectionStore constructs a ConnectionStore.
func NewConnectionStore(pool *pgxpool.Pool) *ConnectionStore {
	return &ConnectionStore{pool: pool}
}

// Get implements domain.ConnectionStore.
func (s *ConnectionStore) Get(ctx context.Context, customerID string) (*domain.StravaConnection, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM strava_connections WHERE customer_id=$1`, customerID)
	return scanConnection(row)
}

// GetByAthleteID implements domain.ConnectionStore.
func (s *ConnectionStore) GetByAthleteID(ctx context.Context, athleteID int64) (*domain.StravaConnection, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+connectionColumns+` FROM strava_connections WHERE athlete_id=$1`, athleteID)
	return scanConnection(row)
}

// Save upserts the connection. A previous binding of the same athlete to another customer is
// removed in the same transaction.
func (s *ConnectionStore) Save(ctx context.Context, conn domain.StravaConnection) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM strava_connections WHERE athlete_id=$1 AND customer_id<>$2`, conn.AthleteID, conn.CustomerID); err != nil {
			return err
		}
		const stmt = `INSERT INTO strava_connections (` + connectionColumns + `)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
            ON CONFLICT (customer_id) DO UPDATE SET
                athlete_id=EXCLUDED.athlete_id,
                access_token=EXCLUDED.access_token,
                refresh_token=EXCLUDED.refresh_token,
                expires_at=EXCLUDED.expires_at,
                scope=EXCLUDED.scope,
                connected_at=EXCLUDED.connected_at,
                last_sync_at=EXCLUDED.last_sync_at`
		_, err := tx.Exec(ctx, stmt,
			conn.CustomerID, conn.AthleteID, conn.AccessToken, conn.RefreshToken,
			conn.ExpiresAt, conn.Scope, conn.ConnectedAt, conn.LastSyncAt,
		)
		return err
	})
}

// Delete implements domain.ConnectionStore.
func (s *ConnectionStore) Delete(ctx context.Context, customerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM strava_connections WHERE customer_id=$1`, customerID)
	return err
}

// ListCustomerIDs implements domain.ConnectionStore.
func (s *ConnectionStore) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT customer_id FROM strava_connections ORDER BY customer_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func scanConnection(row pgx.Row) (*domain.StravaConnection, error) {
	var c domain.StravaConnection
	if err := row.Scan(&c.CustomerID, &c.AthleteID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.Scope, &c.ConnectedAt, &c.LastSyncAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpdateLastSync touches only last_sync_at so a concurrent token refresh is never overwritten.
func (s *ConnectionStore) UpdateLastSync(ctx context.Context, customerID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE strava_connections SET last_sync_at=$2 WHERE customer_id=$1`, customerID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

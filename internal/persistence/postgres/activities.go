package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformevents "github.com/jpvieirapereira/running-club-backend/libs/go/events"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/observability"
	"github.com/jpvieirapereira/running-club-backend/internal/outbox"
)

const activityColumns = `activity_id, customer_id, external_id, name, activity_type, start_date, distance, moving_time, elapsed_time,
        total_elevation_gain, average_speed, max_speed, average_heartrate, max_heartrate, calories, suffer_score,
        heartrate_zones, splits, laps, kudos_count, comment_count, achievement_count, photos, map_polyline,
        training_day_id, match_status, created_at, updated_at`

// ActivityRepository provides Postgres-backed persistence for activities and their outbox events.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Create inserts the activity and records an activity.synced outbox event in one transaction.
// A second import of the same (customer, external id) returns domain.ErrDuplicateActivity.
func (r *ActivityRepository) Create(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = now
	}
	activity.UpdatedAt = now

	splits, err := marshalRecords(activity.Splits)
	if err != nil {
		return err
	}
	laps, err := marshalRecords(activity.Laps)
	if err != nil {
		return err
	}

	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const stmt = `INSERT INTO activities (` + activityColumns + `)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`
		if _, err := tx.Exec(ctx, stmt,
			activity.ID, activity.CustomerID, activity.ExternalID, activity.Name, activity.ActivityType,
			activity.StartDate, activity.Distance, activity.MovingTime, activity.ElapsedTime,
			activity.TotalElevationGain, activity.AverageSpeed, activity.MaxSpeed, activity.AverageHeartrate,
			activity.MaxHeartrate, activity.Calories, activity.SufferScore,
			nullableJSON(activity.HeartrateZones), splits, laps,
			activity.KudosCount, activity.CommentCount, activity.AchievementCount, photosOrEmpty(activity.Photos),
			activity.MapPolyline, activity.TrainingDayID, activity.MatchStatus, activity.CreatedAt, activity.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err, "activities_customer_external_key") {
				return domain.ErrDuplicateActivity
			}
			return err
		}
		return insertOutbox(ctx, tx, activity, outbox.EventActivitySynced, platformevents.ActivitySynced{
			ActivityID:   activity.ID,
			CustomerID:   activity.CustomerID,
			ExternalID:   activity.ExternalID,
			ActivityType: activity.ActivityType,
			StartDate:    activity.StartDate,
			DistanceM:    activity.Distance,
			MovingTimeS:  activity.MovingTime,
			Source:       "strava",
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Update rewrites every mutable column and records an activity.updated outbox event.
func (r *ActivityRepository) Update(ctx context.Context, activity domain.Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	activity.UpdatedAt = time.Now().UTC()

	splits, err := marshalRecords(activity.Splits)
	if err != nil {
		return err
	}
	laps, err := marshalRecords(activity.Laps)
	if err != nil {
		return err
	}

	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		const stmt = `UPDATE activities SET
                name=$2, activity_type=$3, start_date=$4, distance=$5, moving_time=$6, elapsed_time=$7,
                total_elevation_gain=$8, average_speed=$9, max_speed=$10, average_heartrate=$11, max_heartrate=$12,
                calories=$13, suffer_score=$14, heartrate_zones=$15, splits=$16, laps=$17,
                kudos_count=$18, comment_count=$19, achievement_count=$20, photos=$21, map_polyline=$22,
                training_day_id=$23, match_status=$24, updated_at=$25
            WHERE activity_id=$1`
		tag, err := tx.Exec(ctx, stmt,
			activity.ID, activity.Name, activity.ActivityType, activity.StartDate, activity.Distance,
			activity.MovingTime, activity.ElapsedTime, activity.TotalElevationGain, activity.AverageSpeed,
			activity.MaxSpeed, activity.AverageHeartrate, activity.MaxHeartrate, activity.Calories,
			activity.SufferScore, nullableJSON(activity.HeartrateZones), splits, laps,
			activity.KudosCount, activity.CommentCount, activity.AchievementCount, photosOrEmpty(activity.Photos),
			activity.MapPolyline, activity.TrainingDayID, activity.MatchStatus, activity.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrActivityNotFound
		}
		return insertOutbox(ctx, tx, activity, outbox.EventActivityUpdated, platformevents.ActivityUpdated{
			ActivityID:    activity.ID,
			CustomerID:    activity.CustomerID,
			ExternalID:    activity.ExternalID,
			MatchStatus:   string(activity.MatchStatus),
			TrainingDayID: activity.TrainingDayID,
			OccurredAt:    activity.UpdatedAt,
		})
	})
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get retrieves an activity by ID.
func (r *ActivityRepository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id=$1`, activityID)
	return scanOptionalActivity(row)
}

// GetByExternalID implements domain.ActivityRepository.
func (r *ActivityRepository) GetByExternalID(ctx context.Context, customerID string, externalID int64) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+activityColumns+` FROM activities WHERE customer_id=$1 AND external_id=$2`, customerID, externalID)
	return scanOptionalActivity(row)
}

// ListByCustomer returns activities newest first with keyset pagination.
func (r *ActivityRepository) ListByCustomer(ctx context.Context, customerID string, filter domain.ActivityFilter) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{customerID}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE customer_id=$1`

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND start_date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND start_date <= $%d`, len(args))
	}
	if filter.MatchStatus != "" {
		args = append(args, filter.MatchStatus)
		query += fmt.Sprintf(` AND match_status = $%d`, len(args))
	}
	if filter.Cursor != nil {
		args = append(args, filter.Cursor.StartDate, filter.Cursor.ID)
		query += fmt.Sprintf(` AND (start_date, activity_id) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY start_date DESC, activity_id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit+1)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	results, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
		last := results[len(results)-1]
		next = &domain.Cursor{StartDate: last.StartDate, ID: last.ID}
	}
	return results, next, nil
}

// ListByDateRange returns activities started within [from, to], oldest first.
func (r *ActivityRepository) ListByDateRange(ctx context.Context, customerID string, from, to time.Time) ([]domain.Activity, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities
        WHERE customer_id=$1 AND start_date >= $2 AND start_date <= $3
        ORDER BY start_date, activity_id`, customerID, from, to)
}

// ListUnmatched returns activities still waiting for a training day, oldest first.
func (r *ActivityRepository) ListUnmatched(ctx context.Context, customerID string) ([]domain.Activity, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities
        WHERE customer_id=$1 AND match_status='unmatched'
        ORDER BY start_date, activity_id`, customerID)
}

// Delete implements domain.ActivityRepository.
func (r *ActivityRepository) Delete(ctx context.Context, activityID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, activityID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func (r *ActivityRepository) query(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanOptionalActivity(row pgx.Row) (*domain.Activity, error) {
	a, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func scanActivity(row scanner) (domain.Activity, error) {
	var (
		a            domain.Activity
		zones        []byte
		splits, laps []byte
	)
	if err := row.Scan(
		&a.ID, &a.CustomerID, &a.ExternalID, &a.Name, &a.ActivityType, &a.StartDate, &a.Distance, &a.MovingTime, &a.ElapsedTime,
		&a.TotalElevationGain, &a.AverageSpeed, &a.MaxSpeed, &a.AverageHeartrate, &a.MaxHeartrate, &a.Calories, &a.SufferScore,
		&zones, &splits, &laps, &a.KudosCount, &a.CommentCount, &a.AchievementCount, &a.Photos, &a.MapPolyline,
		&a.TrainingDayID, &a.MatchStatus, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return domain.Activity{}, err
	}
	if len(zones) > 0 {
		a.HeartrateZones = json.RawMessage(zones)
	}
	var err error
	if a.Splits, err = unmarshalRecords(splits); err != nil {
		return domain.Activity{}, fmt.Errorf("decode splits: %w", err)
	}
	if a.Laps, err = unmarshalRecords(laps); err != nil {
		return domain.Activity{}, fmt.Errorf("decode laps: %w", err)
	}
	a.StartDate = a.StartDate.UTC()
	return a, nil
}

func photosOrEmpty(photos []string) []string {
	if photos == nil {
		return []string{}
	}
	return photos
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%d", activity.ID, eventType, activity.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (customer_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.CustomerID,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(activity),
		body,
		dedupeKey,
	)
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Activity) string
}

var eventCatalog = map[string]EventMetadata{
	outbox.EventActivitySynced: {
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.CustomerID
		},
	},
	outbox.EventActivityUpdated: {
		Topic:         "activity_updates",
		SchemaSubject: "activity_updates-value",
		PartitionKeyFn: func(a domain.Activity) string {
			return a.CustomerID
		},
	},
}

// Package app assembles repositories and services from configuration for the binaries in cmd/.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpvieirapereira/running-club-backend/internal/activitysync"
	"github.com/jpvieirapereira/running-club-backend/internal/config"
	"github.com/jpvieirapereira/running-club-backend/internal/connection"
	"github.com/jpvieirapereira/running-club-backend/internal/domain"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence/memory"
	"github.com/jpvieirapereira/running-club-backend/internal/persistence/postgres"
	"github.com/jpvieirapereira/running-club-backend/internal/strava"
	"github.com/jpvieirapereira/running-club-backend/internal/trainingplan"
)

// Components holds the wired services shared by every binary.
type Components struct {
	Pool        *pgxpool.Pool // nil with in-memory storage
	Customers   domain.CustomerRepository
	Connections domain.ConnectionStore
	Activities  domain.ActivityRepository
	Plans       domain.TrainingPlanRepository

	Strava   *strava.Client
	Tokens   *connection.Service
	Engine   *activitysync.Engine
	Training *trainingplan.Service
}

// Build opens storage and constructs the services. Call Close when done.
func Build(ctx context.Context, cfg config.Config) (*Components, error) {
	c := &Components{}

	switch cfg.Storage {
	case "memory":
		log.Printf("using in-memory storage; data is lost on restart")
		c.Customers = memory.NewCustomerRepository()
		c.Connections = memory.NewConnectionStore()
		c.Activities = memory.NewActivityRepository()
		c.Plans = memory.NewTrainingPlanRepository()
	case "postgres", "":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		c.Pool = pool
		c.Customers = postgres.NewCustomerRepository(pool)
		c.Connections = postgres.NewConnectionStore(pool)
		c.Activities = postgres.NewActivityRepository(pool)
		c.Plans = postgres.NewTrainingPlanRepository(pool)
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	c.Strava = strava.NewClient(strava.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.Strava.CallbackURL,
		APIURL:       cfg.Strava.APIURL,
		OAuthURL:     cfg.Strava.OAuthURL,
		Timeout:      cfg.Strava.HTTPTimeout,
		MaxRetries:   cfg.Strava.MaxRetries,
	})
	c.Tokens = connection.NewService(c.Customers, c.Connections, c.Strava,
		connection.WithRefreshBuffer(cfg.Sync.RefreshBuffer))
	matcher := activitysync.NewMatcher(c.Activities, c.Plans)
	c.Engine = activitysync.NewEngine(c.Customers, c.Connections, c.Activities, c.Strava, c.Tokens, matcher,
		activitysync.WithPaging(cfg.Sync.PerPage, cfg.Sync.MaxPages),
		activitysync.WithLookback(cfg.Sync.Lookback),
	)
	c.Training = trainingplan.NewService(c.Plans, c.Customers)
	return c, nil
}

// Close releases the database pool.
func (c *Components) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

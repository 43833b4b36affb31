package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// ConnectionStore keeps Strava connections in memory, indexed by customer and athlete.
type ConnectionStore struct {
	mu        sync.RWMutex
	byCust    map[string]domain.StravaConnection
	byAthlete map[int64]string
}

// NewConnectionStore constructs an empty store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{
		byCust:    make(map[string]domain.StravaConnection),
		byAthlete: make(map[int64]string),
	}
}

// Get implements domain.ConnectionStore.
func (s *ConnectionStore) Get(ctx context.Context, customerID string) (*domain.StravaConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.byCust[customerID]
	if !ok {
		return nil, nil
	}
	return &conn, nil
}

// GetByAthleteID implements domain.ConnectionStore.
func (s *ConnectionStore) GetByAthleteID(ctx context.Context, athleteID int64) (*domain.StravaConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	customerID, ok := s.byAthlete[athleteID]
	if !ok {
		return nil, nil
	}
	conn := s.byCust[customerID]
	return &conn, nil
}

// Save upserts the connection. An athlete can only be bound to one customer at a time.
func (s *ConnectionStore) Save(ctx context.Context, conn domain.StravaConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byCust[conn.CustomerID]; ok && prev.AthleteID != conn.AthleteID {
		delete(s.byAthlete, prev.AthleteID)
	}
	if owner, ok := s.byAthlete[conn.AthleteID]; ok && owner != conn.CustomerID {
		delete(s.byCust, owner)
	}
	s.byCust[conn.CustomerID] = conn
	s.byAthlete[conn.AthleteID] = conn.CustomerID
	return nil
}

// Delete implements domain.ConnectionStore.
func (s *ConnectionStore) Delete(ctx context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn, ok := s.byCust[customerID]; ok {
		delete(s.byAthlete, conn.AthleteID)
		delete(s.byCust, customerID)
	}
	return nil
}

// ListCustomerIDs returns every connected customer in ascending order.
func (s *ConnectionStore) ListCustomerIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byCust))
	for id := range s.byCust {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// UpdateLastSync implements domain.ConnectionStore.
func (s *ConnectionStore) UpdateLastSync(ctx context.Context, customerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byCust[customerID]
	if !ok {
		return domain.ErrConnectionNotFound
	}
	ts := at
	conn.LastSyncAt = &ts
	s.byCust[customerID] = conn
	return nil
}

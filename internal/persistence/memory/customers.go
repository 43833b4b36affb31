package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jpvieirapereira/running-club-backend/internal/domain"
)

// CustomerRepository keeps customers in memory.
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
}

// NewCustomerRepository constructs a repository seeded with customers.
func NewCustomerRepository(seed ...domain.Customer) *CustomerRepository {
	r := &CustomerRepository{customers: make(map[string]domain.Customer)}
	for _, c := range seed {
		r.customers[c.ID] = c
	}
	return r
}

// Get implements domain.CustomerRepository.
func (r *CustomerRepository) Get(ctx context.Context, customerID string) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Save implements domain.CustomerRepository.
func (r *CustomerRepository) Save(ctx context.Context, customer domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[customer.ID] = customer
	return nil
}

// UpdateLastSync implements domain.CustomerRepository.
func (r *CustomerRepository) UpdateLastSync(ctx context.Context, customerID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[customerID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	ts := at
	c.StravaLastSync = &ts
	r.customers[customerID] = c
	return nil
}

package repository

import (
	"context"
	"sync"

	"github.com/younes-bami/hrcut-app/internal/model"
)

// MemoryCustomersRepository keeps customers in process memory. Used for local
// runs (store.driver=memory) and tests.
type MemoryCustomersRepository struct {
	mu   sync.RWMutex
	byID map[string]model.Customer
}

func NewMemoryCustomersRepository() *MemoryCustomersRepository {
	return &MemoryCustomersRepository{byID: make(map[string]model.Customer)}
}

var _ CustomersRepository = (*MemoryCustomersRepository)(nil)

func (r *MemoryCustomersRepository) EnsureSchema(context.Context) error { return nil }

// conflictLocked checks the unique keys against every record except skipID.
func (r *MemoryCustomersRepository) conflictLocked(c *model.Customer, skipID string) error {
	for id, existing := range r.byID {
		if id == skipID {
			continue
		}
		if existing.Email == c.Email {
			return &DuplicateError{Field: "email"}
		}
		if existing.Username == c.Username {
			return &DuplicateError{Field: "username"}
		}
	}
	return nil
}

func (r *MemoryCustomersRepository) Insert(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; ok {
		return &DuplicateError{Field: "id"}
	}
	if err := r.conflictLocked(c, ""); err != nil {
		return err
	}
	r.byID[c.ID] = clone(*c)
	return nil
}

func (r *MemoryCustomersRepository) GetByID(_ context.Context, id string) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(c)
	return &out, nil
}

func (r *MemoryCustomersRepository) find(match func(model.Customer) bool) (*model.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.byID {
		if match(c) {
			out := clone(c)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryCustomersRepository) GetByUsername(_ context.Context, username string) (*model.Customer, error) {
	return r.find(func(c model.Customer) bool { return c.Username == username })
}

func (r *MemoryCustomersRepository) GetByEmail(_ context.Context, email string) (*model.Customer, error) {
	return r.find(func(c model.Customer) bool { return c.Email == email })
}

func (r *MemoryCustomersRepository) GetByPhone(_ context.Context, phone string) (*model.Customer, error) {
	return r.find(func(c model.Customer) bool { return c.PhoneNumber == phone })
}

func (r *MemoryCustomersRepository) GetByAuthUserID(_ context.Context, authUserID string) (*model.Customer, error) {
	if authUserID == "" {
		return nil, ErrNotFound
	}
	return r.find(func(c model.Customer) bool { return c.AuthUserID == authUserID })
}

func (r *MemoryCustomersRepository) Update(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; !ok {
		return ErrNotFound
	}
	if err := r.conflictLocked(c, c.ID); err != nil {
		return err
	}
	r.byID[c.ID] = clone(*c)
	return nil
}

// Len returns the number of stored customers.
func (r *MemoryCustomersRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// clone copies the list fields so callers never share backing arrays with
// the store. Empty lists stay empty, not nil.
func clone(c model.Customer) model.Customer {
	c.ServicesInterestedIn = cloneList(c.ServicesInterestedIn)
	c.BookingHistory = cloneList(c.BookingHistory)
	c.Reviews = cloneList(c.Reviews)
	c.Ratings = cloneList(c.Ratings)
	return c
}

func cloneList[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

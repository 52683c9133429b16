package repository

import (
	"context"

	"github.com/younes-bami/hrcut-app/internal/model"
)

// CustomersRepository persists customer records. Implementations must enforce
// uniqueness of username and email at the store level and report violations
// as *DuplicateError.
type CustomersRepository interface {
	Insert(ctx context.Context, c *model.Customer) error
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	GetByUsername(ctx context.Context, username string) (*model.Customer, error)
	GetByEmail(ctx context.Context, email string) (*model.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*model.Customer, error)
	// GetByAuthUserID finds the record linked to an account of the external
	// auth service. An empty id never matches.
	GetByAuthUserID(ctx context.Context, authUserID string) (*model.Customer, error)
	// Update overwrites the mutable fields of the record with c.ID.
	Update(ctx context.Context, c *model.Customer) error
	EnsureSchema(ctx context.Context) error
}

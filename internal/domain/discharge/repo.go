package discharge

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage collaborator for discharge records. The core
// relies on last-write-wins semantics; it does not implement optimistic
// locking.
type Repository interface {
	Create(ctx context.Context, rec *DischargeRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*DischargeRecord, error)
	GetByUHID(ctx context.Context, uhid string) (*DischargeRecord, error)
	Update(ctx context.Context, rec *DischargeRecord) error
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*DischargeRecord, int, error)
	List(ctx context.Context, limit, offset int) ([]*DischargeRecord, int, error)
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type PruneOperationRepository interface {
	WithTx(tx *gorm.DB) PruneOperationRepository

	Create(ctx context.Context, op *model.PruneOperation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PruneOperation, error)
	List(ctx context.Context, limit, offset int) ([]model.PruneOperation, error)
	// MarkRolledBack moves a completed operation to rolled_back; the rest
	// of the row is never mutated.
	MarkRolledBack(ctx context.Context, id uuid.UUID) (bool, error)
}

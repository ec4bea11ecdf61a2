package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type NodeRepository interface {
	// WithTx returns a copy of the repository scoped to the given
	// transaction handle.
	WithTx(tx *gorm.DB) NodeRepository

	Create(ctx context.Context, node *model.Node) error
	// GetByID returns a live node; soft-deleted nodes are not found.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Node, error)
	// GetByIDAny returns a node regardless of soft-delete state.
	GetByIDAny(ctx context.Context, id uuid.UUID) (*model.Node, error)
	// ListChildren returns the nodes whose parent is any of parentIDs.
	ListChildren(ctx context.Context, parentIDs []uuid.UUID, includeDeleted bool) ([]model.Node, error)
	ListLiveIDs(ctx context.Context) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.NodeStatus) (bool, error)

	// DebitQuota atomically increments invites_used by n, guarded so that
	// used never exceeds quota. Returns false when capacity is insufficient.
	DebitQuota(ctx context.Context, id uuid.UUID, n int) (bool, error)
	// CreditQuota atomically decrements invites_used by n, guarded so that
	// used never goes negative.
	CreditQuota(ctx context.Context, id uuid.UUID, n int) (bool, error)
	// SetQuota updates invite_quota, guarded so quota stays >= used.
	SetQuota(ctx context.Context, id uuid.UUID, quota int) (bool, error)

	// SoftDeleteBatch marks every live node in ids deleted with the given
	// reason and forces status to banned. Returns the number of rows hit.
	SoftDeleteBatch(ctx context.Context, ids []uuid.UUID, reason string, now time.Time) (int64, error)
	// Restore clears the soft-delete marker of one node and sets status.
	Restore(ctx context.Context, id uuid.UUID, status model.NodeStatus) (bool, error)
}

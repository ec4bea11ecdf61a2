package repository

import (
	"context"

	"github.com/google/uuid"

	"invitetree/graph/internal/model"
)

type HealthSnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.HealthSnapshot) error
	// LatestByNode returns the newest snapshot for a node, or nil when
	// the node has never been scored.
	LatestByNode(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error)
	ListByNode(ctx context.Context, nodeID uuid.UUID, limit int) ([]model.HealthSnapshot, error)
}

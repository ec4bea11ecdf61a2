package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type pgHealthSnapshotRepository struct {
	db *gorm.DB
}

func NewPGHealthSnapshotRepository(db *gorm.DB) HealthSnapshotRepository {
	return &pgHealthSnapshotRepository{db: db}
}

func (r *pgHealthSnapshotRepository) Create(ctx context.Context, snapshot *model.HealthSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *pgHealthSnapshotRepository) LatestByNode(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error) {
	var snapshot model.HealthSnapshot
	err := r.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("calculated_at DESC, id DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *pgHealthSnapshotRepository) ListByNode(ctx context.Context, nodeID uuid.UUID, limit int) ([]model.HealthSnapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var snapshots []model.HealthSnapshot
	if err := r.db.WithContext(ctx).
		Where("node_id = ?", nodeID).
		Order("calculated_at DESC, id DESC").
		Limit(limit).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

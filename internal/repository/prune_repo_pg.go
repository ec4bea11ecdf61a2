package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type pgPruneOperationRepository struct {
	db *gorm.DB
}

func NewPGPruneOperationRepository(db *gorm.DB) PruneOperationRepository {
	return &pgPruneOperationRepository{db: db}
}

func (r *pgPruneOperationRepository) WithTx(tx *gorm.DB) PruneOperationRepository {
	return &pgPruneOperationRepository{db: tx}
}

func (r *pgPruneOperationRepository) Create(ctx context.Context, op *model.PruneOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *pgPruneOperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PruneOperation, error) {
	var op model.PruneOperation
	if err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *pgPruneOperationRepository) List(ctx context.Context, limit, offset int) ([]model.PruneOperation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var ops []model.PruneOperation
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

func (r *pgPruneOperationRepository) MarkRolledBack(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.PruneOperation{}).
		Where("id = ? AND status = ?", id, model.PruneStatusCompleted).
		Update("status", model.PruneStatusRolledBack)
	return res.RowsAffected > 0, res.Error
}

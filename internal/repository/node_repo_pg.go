package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type pgNodeRepository struct {
	db *gorm.DB
}

func NewPGNodeRepository(db *gorm.DB) NodeRepository {
	return &pgNodeRepository{db: db}
}

func (r *pgNodeRepository) WithTx(tx *gorm.DB) NodeRepository {
	return &pgNodeRepository{db: tx}
}

func (r *pgNodeRepository) Create(ctx context.Context, node *model.Node) error {
	return r.db.WithContext(ctx).Create(node).Error
}

func (r *pgNodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	var node model.Node
	if err := r.db.WithContext(ctx).First(&node, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *pgNodeRepository) GetByIDAny(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	var node model.Node
	if err := r.db.WithContext(ctx).Unscoped().First(&node, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *pgNodeRepository) ListChildren(ctx context.Context, parentIDs []uuid.UUID, includeDeleted bool) ([]model.Node, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}
	var children []model.Node
	if err := q.Where("parent_id IN ?", parentIDs).Order("created_at").Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

func (r *pgNodeRepository) ListLiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&model.Node{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *pgNodeRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.NodeStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("id = ?", id).
		Update("status", status)
	return res.RowsAffected > 0, res.Error
}

func (r *pgNodeRepository) DebitQuota(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("id = ? AND invites_used + ? <= invite_quota", id, n).
		UpdateColumn("invites_used", gorm.Expr("invites_used + ?", n))
	return res.RowsAffected > 0, res.Error
}

func (r *pgNodeRepository) CreditQuota(ctx context.Context, id uuid.UUID, n int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("id = ? AND invites_used - ? >= 0", id, n).
		UpdateColumn("invites_used", gorm.Expr("invites_used - ?", n))
	return res.RowsAffected > 0, res.Error
}

func (r *pgNodeRepository) SetQuota(ctx context.Context, id uuid.UUID, quota int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("id = ? AND invites_used <= ?", id, quota).
		Update("invite_quota", quota)
	return res.RowsAffected > 0, res.Error
}

func (r *pgNodeRepository) SoftDeleteBatch(ctx context.Context, ids []uuid.UUID, reason string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Node{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"deleted_at":     now,
			"deleted_reason": reason,
			"status":         model.NodeStatusBanned,
		})
	return res.RowsAffected, res.Error
}

func (r *pgNodeRepository) Restore(ctx context.Context, id uuid.UUID, status model.NodeStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Node{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(map[string]interface{}{
			"deleted_at":     nil,
			"deleted_reason": "",
			"status":         status,
		})
	return res.RowsAffected > 0, res.Error
}

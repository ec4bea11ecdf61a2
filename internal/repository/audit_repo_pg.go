package repository

import (
	"context"

	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type pgAuditEventRepository struct {
	db *gorm.DB
}

func NewPGAuditEventRepository(db *gorm.DB) AuditEventRepository {
	return &pgAuditEventRepository{db: db}
}

func (r *pgAuditEventRepository) WithTx(tx *gorm.DB) AuditEventRepository {
	return &pgAuditEventRepository{db: tx}
}

func (r *pgAuditEventRepository) Append(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *pgAuditEventRepository) applyFilter(q *gorm.DB, filter AuditFilter) *gorm.DB {
	if filter.Kind != nil {
		q = q.Where("event_kind = ?", *filter.Kind)
	}
	if filter.ActorID != nil {
		q = q.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.TargetID != nil {
		q = q.Where("target_id = ?", *filter.TargetID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	return q
}

func (r *pgAuditEventRepository) Query(ctx context.Context, filter AuditFilter) ([]model.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := r.applyFilter(r.db.WithContext(ctx).Model(&model.AuditEvent{}), filter)

	var events []model.AuditEvent
	if err := q.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *pgAuditEventRepository) Count(ctx context.Context, filter AuditFilter) (int64, error) {
	var count int64
	q := r.applyFilter(r.db.WithContext(ctx).Model(&model.AuditEvent{}), filter)
	err := q.Count(&count).Error
	return count, err
}

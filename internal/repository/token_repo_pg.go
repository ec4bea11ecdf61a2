package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type pgTokenRepository struct {
	db *gorm.DB
}

func NewPGTokenRepository(db *gorm.DB) TokenRepository {
	return &pgTokenRepository{db: db}
}

func (r *pgTokenRepository) WithTx(tx *gorm.DB) TokenRepository {
	return &pgTokenRepository{db: tx}
}

func (r *pgTokenRepository) Create(ctx context.Context, token *model.InviteToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *pgTokenRepository) GetByValue(ctx context.Context, value string) (*model.InviteToken, error) {
	var token model.InviteToken
	if err := r.db.WithContext(ctx).Where("token = ?", value).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *pgTokenRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.InviteToken, error) {
	var token model.InviteToken
	if err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *pgTokenRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.InviteToken, error) {
	var tokens []model.InviteToken
	if err := r.db.WithContext(ctx).
		Where("created_by_id = ?", creatorID).
		Order("created_at DESC").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *pgTokenRepository) MarkUsed(ctx context.Context, value string, usedBy uuid.UUID, now time.Time, ip, userAgent string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InviteToken{}).
		Where("token = ? AND is_used = ? AND is_revoked = ?", value, false, false).
		Updates(map[string]interface{}{
			"is_used":         true,
			"used_by_id":      usedBy,
			"used_at":         now,
			"used_ip":         ip,
			"used_user_agent": userAgent,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *pgTokenRepository) MarkRevoked(ctx context.Context, id uuid.UUID, revokedBy *uuid.UUID, reason string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.InviteToken{}).
		Where("id = ? AND is_used = ? AND is_revoked = ?", id, false, false).
		Updates(map[string]interface{}{
			"is_revoked":     true,
			"revoked_at":     now,
			"revoked_by_id":  revokedBy,
			"revoked_reason": reason,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *pgTokenRepository) ListSweepable(ctx context.Context, now time.Time) ([]model.InviteToken, error) {
	var tokens []model.InviteToken
	if err := r.db.WithContext(ctx).
		Where("expires_at < ? AND is_used = ? AND is_revoked = ?", now, false, false).
		Order("expires_at").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

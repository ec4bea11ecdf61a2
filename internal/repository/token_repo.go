package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

type TokenRepository interface {
	WithTx(tx *gorm.DB) TokenRepository

	Create(ctx context.Context, token *model.InviteToken) error
	GetByValue(ctx context.Context, value string) (*model.InviteToken, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.InviteToken, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.InviteToken, error)

	// MarkUsed is the compare-and-set that decides token consumption:
	// it flips is_used false -> true and returns false when another
	// consumer already won the race (or the token is revoked).
	MarkUsed(ctx context.Context, value string, usedBy uuid.UUID, now time.Time, ip, userAgent string) (bool, error)
	// MarkRevoked flips is_revoked on an unused, unrevoked token.
	MarkRevoked(ctx context.Context, id uuid.UUID, revokedBy *uuid.UUID, reason string, now time.Time) (bool, error)
	// ListSweepable returns unused, unrevoked tokens past expiry.
	ListSweepable(ctx context.Context, now time.Time) ([]model.InviteToken, error)
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

// AuditFilter narrows an audit query. Nil fields match everything.
type AuditFilter struct {
	Kind     *model.EventKind
	ActorID  *uuid.UUID
	TargetID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// AuditEventRepository is append-only: no update or delete path exists.
type AuditEventRepository interface {
	WithTx(tx *gorm.DB) AuditEventRepository

	Append(ctx context.Context, event *model.AuditEvent) error
	Query(ctx context.Context, filter AuditFilter) ([]model.AuditEvent, error)
	Count(ctx context.Context, filter AuditFilter) (int64, error)
}

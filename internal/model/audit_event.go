package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventTokenCreated    EventKind = "token_created"
	EventTokenUsed       EventKind = "token_used"
	EventTokenExpired    EventKind = "token_expired"
	EventTokenRevoked    EventKind = "token_revoked"
	EventNodePruned      EventKind = "node_pruned"
	EventQuotaAdjusted   EventKind = "quota_adjusted"
	EventNodeFlagged     EventKind = "node_flagged"
	EventNodeUnflagged   EventKind = "node_unflagged"
	EventPruneRolledBack EventKind = "prune_rolled_back"
)

// EventPayload is a JSON blob stored in the payload column.
type EventPayload map[string]interface{}

func (p EventPayload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

func (p *EventPayload) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return errors.New("EventPayload.Scan: unsupported source type")
}

// AuditEvent is an immutable record of one state-changing action. The
// auto-incrementing ID defines forensic ordering; rows are never updated
// or deleted once written.
type AuditEvent struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	EventKind EventKind `gorm:"type:varchar(50);not null;index:idx_audit_target_kind_time,priority:2" json:"event_kind"`

	// ActorID is nil for system-initiated events (e.g. the expiry sweep).
	ActorID  *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	TargetID *uuid.UUID `gorm:"type:uuid;index:idx_audit_target_kind_time,priority:1" json:"target_id,omitempty"`
	TokenID  *uuid.UUID `gorm:"type:uuid" json:"token_id,omitempty"`

	Payload EventPayload `gorm:"type:jsonb" json:"payload,omitempty"`

	CreatedAt time.Time `gorm:"not null;index:idx_audit_target_kind_time,priority:3" json:"created_at"`

	// Forensic context.
	IPAddress string `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"-"`
}

func (AuditEvent) TableName() string { return "audit_events" }

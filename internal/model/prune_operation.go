package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PruneStatus string

const (
	PruneStatusPending    PruneStatus = "pending"
	PruneStatusCompleted  PruneStatus = "completed"
	PruneStatusRolledBack PruneStatus = "rolled_back"
)

// AffectedNode is the minimal identity of one node captured when a prune
// executes, kept for display and manual rollback.
type AffectedNode struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	Status      NodeStatus `json:"status"`
	Depth       int        `json:"depth"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AffectedNodes is a JSON array stored in the affected_nodes column.
type AffectedNodes []AffectedNode

func (a AffectedNodes) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(AffectedNodes{})
	}
	return json.Marshal(a)
}

func (a *AffectedNodes) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return errors.New("AffectedNodes.Scan: unsupported source type")
}

// PruneOperation records one branch removal. The row itself is immutable
// history apart from the pending -> completed -> rolled_back lifecycle.
type PruneOperation struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RootID uuid.UUID `gorm:"type:uuid;not null;index" json:"root_id"`

	AffectedCount int    `gorm:"not null" json:"affected_count"`
	Reason        string `gorm:"type:text;not null" json:"reason"`

	ExecutedByID uuid.UUID   `gorm:"type:uuid;not null;index" json:"executed_by_id"`
	Status       PruneStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	AffectedNodes AffectedNodes `gorm:"type:jsonb;not null" json:"affected_nodes"`

	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

func (PruneOperation) TableName() string { return "prune_operations" }

func (p *PruneOperation) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

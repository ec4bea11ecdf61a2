package model

import (
	"time"

	"github.com/google/uuid"
)

type MaturityLevel string

const (
	MaturityBranch          MaturityLevel = "branch"
	MaturitySupportingTrunk MaturityLevel = "supporting_trunk"
	MaturityCore            MaturityLevel = "core"
)

// HealthSnapshot is one scoring-pass result for a node. Snapshots
// accumulate over time; a new run appends rather than overwrites.
type HealthSnapshot struct {
	ID     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeID uuid.UUID `gorm:"type:uuid;not null;index:idx_health_node_time,priority:1" json:"node_id"`

	SubtreeSize  int `gorm:"not null;default:0" json:"subtree_size"`
	ActiveCount  int `gorm:"not null;default:0" json:"active_count"`
	FlaggedCount int `gorm:"not null;default:0" json:"flagged_count"`
	BannedCount  int `gorm:"not null;default:0" json:"banned_count"`
	MaxDepth     int `gorm:"not null;default:0" json:"max_depth"`

	// Per-band composition: direct children, level 2, level 3 and deeper.
	Band1Total  int `gorm:"not null;default:0" json:"band1_total"`
	Band1Active int `gorm:"not null;default:0" json:"band1_active"`
	Band2Total  int `gorm:"not null;default:0" json:"band2_total"`
	Band2Active int `gorm:"not null;default:0" json:"band2_active"`
	Band3Total  int `gorm:"not null;default:0" json:"band3_total"`
	Band3Active int `gorm:"not null;default:0" json:"band3_active"`

	Score         float64       `gorm:"not null;default:100" json:"score"`
	MaturityLevel MaturityLevel `gorm:"type:varchar(20);not null;default:'branch'" json:"maturity_level"`

	CalculatedAt time.Time `gorm:"not null;index:idx_health_node_time,priority:2" json:"calculated_at"`
}

func (HealthSnapshot) TableName() string { return "health_snapshots" }

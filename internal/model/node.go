package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NodeStatus string

const (
	NodeStatusActive    NodeStatus = "active"
	NodeStatusFlagged   NodeStatus = "flagged"
	NodeStatusSuspended NodeStatus = "suspended"
	NodeStatusBanned    NodeStatus = "banned"
)

// Valid reports whether s is one of the closed set of node statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusActive, NodeStatusFlagged, NodeStatusSuspended, NodeStatusBanned:
		return true
	}
	return false
}

// Node is one account in the invite tree. ParentID is nil only for roots
// and is fixed at creation; it is never updated afterwards.
type Node struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName  string     `gorm:"type:varchar(64);not null" json:"display_name"`
	ParentID     *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Status       NodeStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsCoreMember bool       `gorm:"not null;default:false" json:"is_core_member"`

	InviteQuota int `gorm:"not null;default:0" json:"invite_quota"`
	InvitesUsed int `gorm:"not null;default:0" json:"invites_used"`

	// Forensic data captured at registration.
	RegistrationIP        string `gorm:"type:varchar(64)" json:"-"`
	RegistrationUserAgent string `gorm:"type:text" json:"-"`

	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	DeletedReason string         `gorm:"type:text" json:"deleted_reason,omitempty"`
}

func (Node) TableName() string { return "nodes" }

func (n *Node) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// InvitesAvailable is the remaining invite capacity.
func (n *Node) InvitesAvailable() int {
	if avail := n.InviteQuota - n.InvitesUsed; avail > 0 {
		return avail
	}
	return 0
}

func (n *Node) IsDeleted() bool { return n.DeletedAt.Valid }

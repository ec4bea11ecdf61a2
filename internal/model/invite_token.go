package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteToken is a single-use, time-limited credential gating node
// creation. IsUsed transitions false -> true exactly once.
type InviteToken struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Token string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"token"`

	CreatedByID uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by_id"`
	UsedByID    *uuid.UUID `gorm:"type:uuid;index" json:"used_by_id,omitempty"`
	IsUsed      bool       `gorm:"not null;default:false;index" json:"is_used"`

	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	IsRevoked     bool       `gorm:"not null;default:false;index" json:"is_revoked"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedByID   *uuid.UUID `gorm:"type:uuid" json:"revoked_by_id,omitempty"`
	RevokedReason string     `gorm:"type:text" json:"revoked_reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	// Forensic metadata recorded at consumption time.
	UsedIP        string `gorm:"type:varchar(64)" json:"-"`
	UsedUserAgent string `gorm:"type:text" json:"-"`

	Note string `gorm:"type:text" json:"note,omitempty"`
}

func (InviteToken) TableName() string { return "invite_tokens" }

func (t *InviteToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the token is past its expiry at now.
func (t *InviteToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid reports whether the token can still be consumed at now.
func (t *InviteToken) IsValid(now time.Time) bool {
	return !t.IsUsed && !t.IsRevoked && !t.IsExpired(now)
}

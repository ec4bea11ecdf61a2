package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Node{},
		&InviteToken{},
		&AuditEvent{},
		&HealthSnapshot{},
		&PruneOperation{},
	); err != nil {
		return err
	}

	// Token lookup during consume filters on value + used flag.
	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_tokens_value_used " +
			"ON invite_tokens (token, is_used)",
	).Error; err != nil {
		return err
	}

	// The expiry sweep scans only live, unconsumed tokens.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_tokens_sweepable " +
			"ON invite_tokens (expires_at) WHERE is_used = false AND is_revoked = false",
	).Error
}

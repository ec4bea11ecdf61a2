package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

// setupDB opens a temporary SQLite database, runs migrations, and caps
// the pool at one connection so concurrent test goroutines serialize
// instead of tripping over SQLITE_BUSY.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, model.AutoMigrate(db))
	return db
}

type testRepos struct {
	nodes     repository.NodeRepository
	tokens    repository.TokenRepository
	events    repository.AuditEventRepository
	snapshots repository.HealthSnapshotRepository
	ops       repository.PruneOperationRepository
}

func newTestRepos(db *gorm.DB) testRepos {
	return testRepos{
		nodes:     repository.NewPGNodeRepository(db),
		tokens:    repository.NewPGTokenRepository(db),
		events:    repository.NewPGAuditEventRepository(db),
		snapshots: repository.NewPGHealthSnapshotRepository(db),
		ops:       repository.NewPGPruneOperationRepository(db),
	}
}

// mustCreateNode inserts a node directly, bypassing the token flow.
func mustCreateNode(t *testing.T, db *gorm.DB, name string, parentID *uuid.UUID, status model.NodeStatus, quota int) *model.Node {
	t.Helper()
	node := &model.Node{
		DisplayName: name,
		ParentID:    parentID,
		Status:      status,
		InviteQuota: quota,
	}
	require.NoError(t, db.Create(node).Error)
	return node
}

func mustCreateRoot(t *testing.T, db *gorm.DB, name string, quota int) *model.Node {
	t.Helper()
	return mustCreateNode(t, db, name, nil, model.NodeStatusActive, quota)
}

// backdate rewrites a node's creation time for age-dependent assertions.
func backdate(t *testing.T, db *gorm.DB, id uuid.UUID, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&model.Node{}).
		Where("id = ?", id).
		UpdateColumn("created_at", createdAt).Error)
}

func countEvents(t *testing.T, db *gorm.DB, kind model.EventKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.AuditEvent{}).
		Where("event_kind = ?", kind).
		Count(&n).Error)
	return n
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

func newAuditService(t *testing.T) (AuditService, repository.AuditEventRepository, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	repos := newTestRepos(db)
	return NewAuditService(repos.events), repos.events, db
}

func appendEvent(t *testing.T, events repository.AuditEventRepository, kind model.EventKind, target uuid.UUID) {
	t.Helper()
	require.NoError(t, events.Append(context.Background(), &model.AuditEvent{
		EventKind: kind,
		TargetID:  &target,
		Payload:   model.EventPayload{"seq": kind},
	}))
}

func TestQueryNewestFirst(t *testing.T) {
	svc, events, _ := newAuditService(t)
	ctx := context.Background()
	target := uuid.New()

	appendEvent(t, events, model.EventTokenCreated, target)
	appendEvent(t, events, model.EventTokenUsed, target)
	appendEvent(t, events, model.EventNodePruned, target)

	page, err := svc.Query(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, page.Events, 3)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, model.EventNodePruned, page.Events[0].EventKind)
	assert.Equal(t, model.EventTokenCreated, page.Events[2].EventKind)
}

func TestQueryFilters(t *testing.T) {
	svc, events, _ := newAuditService(t)
	ctx := context.Background()
	alpha, beta := uuid.New(), uuid.New()

	appendEvent(t, events, model.EventTokenCreated, alpha)
	appendEvent(t, events, model.EventTokenCreated, beta)
	appendEvent(t, events, model.EventNodePruned, alpha)

	kind := model.EventTokenCreated
	page, err := svc.Query(ctx, repository.AuditFilter{Kind: &kind})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)
	assert.EqualValues(t, 2, page.Total)

	page, err = svc.Query(ctx, repository.AuditFilter{TargetID: &alpha})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)

	page, err = svc.Query(ctx, repository.AuditFilter{Kind: &kind, TargetID: &alpha})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, alpha, *page.Events[0].TargetID)
}

func TestQueryTimeWindow(t *testing.T) {
	svc, events, db := newAuditService(t)
	ctx := context.Background()
	target := uuid.New()

	appendEvent(t, events, model.EventTokenCreated, target)
	appendEvent(t, events, model.EventTokenUsed, target)

	// Push the first event into the past.
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&model.AuditEvent{}).
		Where("event_kind = ?", model.EventTokenCreated).
		UpdateColumn("created_at", old).Error)

	since := time.Now().Add(-time.Hour)
	page, err := svc.Query(ctx, repository.AuditFilter{From: &since})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.Equal(t, model.EventTokenUsed, page.Events[0].EventKind)
}

func TestQueryPagination(t *testing.T) {
	svc, events, _ := newAuditService(t)
	ctx := context.Background()
	target := uuid.New()

	for i := 0; i < 5; i++ {
		appendEvent(t, events, model.EventTokenCreated, target)
	}

	page, err := svc.Query(ctx, repository.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Events, 2)
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 2, page.Limit)

	next, err := svc.Query(ctx, repository.AuditFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, next.Events, 1)
}

func TestPayloadRoundTrip(t *testing.T) {
	svc, events, _ := newAuditService(t)
	ctx := context.Background()
	target := uuid.New()

	require.NoError(t, events.Append(ctx, &model.AuditEvent{
		EventKind: model.EventQuotaAdjusted,
		TargetID:  &target,
		Payload:   model.EventPayload{"old_quota": 5, "new_quota": 20, "reason": "growth"},
		IPAddress: "203.0.113.5",
	}))

	page, err := svc.Query(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	got := page.Events[0]
	assert.Equal(t, "growth", got.Payload["reason"])
	assert.EqualValues(t, 20, got.Payload["new_quota"])
	assert.Equal(t, "203.0.113.5", got.IPAddress)
}

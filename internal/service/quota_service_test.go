package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newQuotaService(t *testing.T) (QuotaService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	repos := newTestRepos(db)
	return NewQuotaService(db, repos.nodes, repos.events), db
}

func TestDebitWithinQuota(t *testing.T) {
	svc, db := newQuotaService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 3)

	require.NoError(t, svc.Debit(ctx, owner.ID, 2))
	assert.Equal(t, 2, reloadNode(t, db, owner.ID).InvitesUsed)

	assert.ErrorIs(t, svc.Debit(ctx, owner.ID, 2), ErrQuotaExceeded)
	assert.Equal(t, 2, reloadNode(t, db, owner.ID).InvitesUsed)
}

func TestCreditNeverGoesNegative(t *testing.T) {
	svc, db := newQuotaService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 3)

	require.NoError(t, svc.Debit(ctx, owner.ID, 1))
	require.NoError(t, svc.Credit(ctx, owner.ID, 1))
	assert.Equal(t, 0, reloadNode(t, db, owner.ID).InvitesUsed)

	assert.ErrorIs(t, svc.Credit(ctx, owner.ID, 1), ErrQuotaBelowUsed)
}

func TestDebitZeroIsNoop(t *testing.T) {
	svc, db := newQuotaService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 3)

	require.NoError(t, svc.Debit(ctx, owner.ID, 0))
	require.NoError(t, svc.Credit(ctx, owner.ID, -1))
	assert.Equal(t, 0, reloadNode(t, db, owner.ID).InvitesUsed)
}

func TestAdjustRecordsAuditEvent(t *testing.T) {
	svc, db := newQuotaService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)
	admin := uuid.New()

	updated, err := svc.Adjust(ctx, owner.ID, 20, admin, "trusted inviter", RequestMeta{IP: "10.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.InviteQuota)
	assert.EqualValues(t, 1, countEvents(t, db, "quota_adjusted"))
}

func TestAdjustBelowUsageFails(t *testing.T) {
	svc, db := newQuotaService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 10)

	require.NoError(t, svc.Debit(ctx, owner.ID, 5))

	_, err := svc.Adjust(ctx, owner.ID, 3, uuid.New(), "squeeze", RequestMeta{})
	assert.ErrorIs(t, err, ErrQuotaBelowUsed)
	assert.Equal(t, 10, reloadNode(t, db, owner.ID).InviteQuota)

	// Shrinking down to exactly the used count is allowed.
	updated, err := svc.Adjust(ctx, owner.ID, 5, uuid.New(), "cap", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.InviteQuota)
	assert.Equal(t, 0, updated.InvitesAvailable())
}

func TestAdjustUnknownNode(t *testing.T) {
	svc, _ := newQuotaService(t)
	_, err := svc.Adjust(context.Background(), uuid.New(), 10, uuid.New(), "x", RequestMeta{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

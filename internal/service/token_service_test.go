package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
)

func newTokenService(t *testing.T) (TokenService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	repos := newTestRepos(db)
	svc := NewTokenService(db, repos.nodes, repos.tokens, repos.events,
		24*time.Hour, 5, 10, zap.NewNop())
	return svc, db
}

// expireToken pushes a token's expiry into the past.
func expireToken(t *testing.T, db *gorm.DB, tokenID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Model(&model.InviteToken{}).
		Where("id = ?", tokenID).
		UpdateColumn("expires_at", time.Now().Add(-time.Hour)).Error)
}

func reloadNode(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Node {
	t.Helper()
	var node model.Node
	require.NoError(t, db.Unscoped().First(&node, "id = ?", id).Error)
	return &node
}

func TestCreateDebitsQuota(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 3)

	tokens, err := svc.Create(ctx, owner.ID, 2, "friends", RequestMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0].Token, tokens[1].Token)

	got := reloadNode(t, db, owner.ID)
	assert.Equal(t, 2, got.InvitesUsed)
	assert.Equal(t, 1, got.InvitesAvailable())
	assert.EqualValues(t, 2, countEvents(t, db, model.EventTokenCreated))
}

func TestCreateRejectsOverQuota(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 3)

	_, err := svc.Create(ctx, owner.ID, 2, "", RequestMeta{})
	require.NoError(t, err)

	// Two issued, one slot left: a batch of two must fail whole.
	_, err = svc.Create(ctx, owner.ID, 2, "", RequestMeta{})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	got := reloadNode(t, db, owner.ID)
	assert.Equal(t, 2, got.InvitesUsed)
	assert.EqualValues(t, 2, countEvents(t, db, model.EventTokenCreated))
}

func TestCreateClampsBatchSize(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 100)

	tokens, err := svc.Create(ctx, owner.ID, 50, "", RequestMeta{})
	require.NoError(t, err)
	assert.Len(t, tokens, 10)
}

func TestCreateUnknownOwner(t *testing.T) {
	svc, _ := newTokenService(t)
	_, err := svc.Create(context.Background(), uuid.New(), 1, "", RequestMeta{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestValidateReportsState(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)
	value := tokens[0].Token

	res, err := svc.Validate(ctx, value)
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = svc.Validate(ctx, "no-such-token")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "not_found", res.Reason)

	expireToken(t, db, tokens[0].ID)
	res, err = svc.Validate(ctx, value)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "expired", res.Reason)
}

func TestConsumeCreatesChildUnderCreator(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)

	node, err := svc.Consume(ctx, tokens[0].Token, Registration{
		DisplayName: "newcomer",
		Meta:        RequestMeta{IP: "192.0.2.7", UserAgent: "curl"},
	})
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, owner.ID, *node.ParentID)
	assert.Equal(t, model.NodeStatusActive, node.Status)
	assert.Equal(t, 5, node.InviteQuota)
	assert.Equal(t, "192.0.2.7", node.RegistrationIP)

	var token model.InviteToken
	require.NoError(t, db.First(&token, "id = ?", tokens[0].ID).Error)
	assert.True(t, token.IsUsed)
	require.NotNil(t, token.UsedByID)
	assert.Equal(t, node.ID, *token.UsedByID)
	assert.Equal(t, "192.0.2.7", token.UsedIP)

	assert.EqualValues(t, 1, countEvents(t, db, model.EventTokenUsed))

	// Consumption does not return quota; issuance spent it.
	got := reloadNode(t, db, owner.ID)
	assert.Equal(t, 1, got.InvitesUsed)
}

func TestConsumeSecondCallerLoses(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "first"})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "second"})
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

	var count int64
	require.NoError(t, db.Model(&model.Node{}).Where("parent_id = ?", owner.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConsumeConcurrentExactlyOneWinner(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "racer"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
		}
	}
	assert.Equal(t, 1, winners)

	var count int64
	require.NoError(t, db.Model(&model.Node{}).Where("parent_id = ?", owner.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConsumeExpiredToken(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)
	expireToken(t, db, tokens[0].ID)

	_, err = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "late"})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestConsumeUnknownToken(t *testing.T) {
	svc, _ := newTokenService(t)
	_, err := svc.Consume(context.Background(), "bogus", Registration{DisplayName: "x"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeCreditsQuotaBack(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)
	admin := uuid.New()

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, reloadNode(t, db, owner.ID).InvitesUsed)

	revoked, err := svc.Revoke(ctx, tokens[0].ID, admin, "mistake", RequestMeta{})
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked)
	assert.Equal(t, "mistake", revoked.RevokedReason)
	assert.Equal(t, 0, reloadNode(t, db, owner.ID).InvitesUsed)
	assert.EqualValues(t, 1, countEvents(t, db, model.EventTokenRevoked))

	_, err = svc.Revoke(ctx, tokens[0].ID, admin, "again", RequestMeta{})
	assert.ErrorIs(t, err, ErrTokenAlreadyRevoked)

	_, err = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "x"})
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevokeUsedToken(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, tokens[0].Token, Registration{DisplayName: "joined"})
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, tokens[0].ID, uuid.New(), "too late", RequestMeta{})
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
}

func TestRevokeExpiredTokenCreditsQuota(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 5)

	tokens, err := svc.Create(ctx, owner.ID, 1, "", RequestMeta{})
	require.NoError(t, err)
	expireToken(t, db, tokens[0].ID)

	// Revoking an expired token must still return the slot. The sweep
	// skips revoked tokens, so no other path can credit it.
	revoked, err := svc.Revoke(ctx, tokens[0].ID, uuid.New(), "cleanup", RequestMeta{})
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked)
	assert.Equal(t, 0, reloadNode(t, db, owner.ID).InvitesUsed)

	// A later sweep ignores the revoked token: no double credit, no
	// extra events.
	swept, err := svc.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, 0, reloadNode(t, db, owner.ID).InvitesUsed)
	assert.EqualValues(t, 0, countEvents(t, db, model.EventTokenExpired))
	assert.EqualValues(t, 1, countEvents(t, db, model.EventTokenRevoked))
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 10)

	tokens, err := svc.Create(ctx, owner.ID, 3, "", RequestMeta{})
	require.NoError(t, err)
	expireToken(t, db, tokens[0].ID)
	expireToken(t, db, tokens[1].ID)

	swept, err := svc.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	// Expired tokens return their slots; the live one keeps its debit.
	assert.Equal(t, 1, reloadNode(t, db, owner.ID).InvitesUsed)
	assert.EqualValues(t, 2, countEvents(t, db, model.EventTokenExpired))

	swept, err = svc.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
	assert.Equal(t, 1, reloadNode(t, db, owner.ID).InvitesUsed)
	assert.EqualValues(t, 2, countEvents(t, db, model.EventTokenExpired))
}

func TestListByOwner(t *testing.T) {
	svc, db := newTokenService(t)
	ctx := context.Background()
	owner := mustCreateRoot(t, db, "owner", 10)
	other := mustCreateRoot(t, db, "other", 10)

	_, err := svc.Create(ctx, owner.ID, 2, "", RequestMeta{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, other.ID, 1, "", RequestMeta{})
	require.NoError(t, err)

	mine, err := svc.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

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
)

func newTreeService(t *testing.T) (TreeService, *gorm.DB) {
	t.Helper()
	db := setupDB(t)
	repos := newTestRepos(db)
	return NewTreeService(db, repos.nodes, repos.events), db
}

// buildSampleTree creates root -> {a, b}, a -> {c} and returns the nodes.
func buildSampleTree(t *testing.T, db *gorm.DB) (root, a, b, c *model.Node) {
	t.Helper()
	root = mustCreateRoot(t, db, "root", 10)
	a = mustCreateNode(t, db, "a", &root.ID, model.NodeStatusActive, 5)
	b = mustCreateNode(t, db, "b", &root.ID, model.NodeStatusActive, 5)
	c = mustCreateNode(t, db, "c", &a.ID, model.NodeStatusActive, 5)
	return root, a, b, c
}

func TestInsertRequiresLiveParent(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()

	missing := uuid.New()
	err := svc.Insert(ctx, &model.Node{DisplayName: "orphan", ParentID: &missing})
	assert.ErrorIs(t, err, ErrParentNotFound)

	root := mustCreateRoot(t, db, "root", 10)
	dead := mustCreateNode(t, db, "dead", &root.ID, model.NodeStatusActive, 0)
	require.NoError(t, db.Model(&model.Node{}).
		Where("id = ?", dead.ID).
		Updates(map[string]interface{}{"deleted_at": time.Now(), "status": model.NodeStatusBanned}).Error)

	err = svc.Insert(ctx, &model.Node{DisplayName: "child", ParentID: &dead.ID})
	assert.ErrorIs(t, err, ErrParentDeleted)
}

func TestInsertDefaultsStatusActive(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()

	root := mustCreateRoot(t, db, "root", 10)
	node := &model.Node{DisplayName: "child", ParentID: &root.ID}
	require.NoError(t, svc.Insert(ctx, node))

	got, err := svc.Get(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NodeStatusActive, got.Status)
	assert.Equal(t, root.ID, *got.ParentID)
}

func TestDescendantsBreadthFirst(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, a, b, c := buildSampleTree(t, db)

	descs, err := svc.Descendants(ctx, root.ID, 0, false)
	require.NoError(t, err)
	require.Len(t, descs, 3)

	byID := map[uuid.UUID]int{}
	for _, d := range descs {
		byID[d.ID] = d.Depth
	}
	assert.Equal(t, 1, byID[a.ID])
	assert.Equal(t, 1, byID[b.ID])
	assert.Equal(t, 2, byID[c.ID])

	// Depth 2 only appears after both depth-1 entries.
	assert.Equal(t, 2, descs[2].Depth)
}

func TestDescendantsDepthLimit(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, _, _, _ := buildSampleTree(t, db)

	descs, err := svc.Descendants(ctx, root.ID, 1, false)
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestDescendantsIncludeDeleted(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, _, _, c := buildSampleTree(t, db)

	require.NoError(t, db.Model(&model.Node{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{"deleted_at": time.Now(), "status": model.NodeStatusBanned}).Error)

	live, err := svc.Descendants(ctx, root.ID, 0, false)
	require.NoError(t, err)
	assert.Len(t, live, 2)

	all, err := svc.Descendants(ctx, root.ID, 0, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDescendantsUnknownRoot(t *testing.T) {
	svc, _ := newTreeService(t)
	_, err := svc.Descendants(context.Background(), uuid.New(), 0, false)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestAncestorsNearestFirst(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, a, _, c := buildSampleTree(t, db)

	ancestors, err := svc.Ancestors(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, a.ID, ancestors[0].ID)
	assert.Equal(t, root.ID, ancestors[1].ID)

	// A root has no ancestors.
	ancestors, err = svc.Ancestors(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

func TestAncestorsDetectsCycle(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, a, _, _ := buildSampleTree(t, db)

	// Corrupt the data: point root back at its own child.
	require.NoError(t, db.Model(&model.Node{}).
		Where("id = ?", root.ID).
		UpdateColumn("parent_id", a.ID).Error)

	_, err := svc.Ancestors(ctx, a.ID)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestSubtreeStatsBands(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()

	root := mustCreateRoot(t, db, "root", 10)
	c1 := mustCreateNode(t, db, "c1", &root.ID, model.NodeStatusActive, 0)
	mustCreateNode(t, db, "c2", &root.ID, model.NodeStatusBanned, 0)
	g1 := mustCreateNode(t, db, "g1", &c1.ID, model.NodeStatusFlagged, 0)
	mustCreateNode(t, db, "gg1", &g1.ID, model.NodeStatusActive, 0)

	stats, err := svc.SubtreeStats(ctx, root.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalDescendants)
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.FlaggedCount)
	assert.Equal(t, 1, stats.BannedCount)
	assert.Equal(t, 3, stats.MaxDepth)
	assert.Equal(t, 2, stats.DirectChildren)

	assert.Equal(t, 2, stats.Band1Total)
	assert.Equal(t, 1, stats.Band1Active)
	assert.Equal(t, 1, stats.Band2Total)
	assert.Equal(t, 0, stats.Band2Active)
	assert.Equal(t, 1, stats.Band3Total)
	assert.Equal(t, 1, stats.Band3Active)
}

func TestTreeNesting(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root, a, b, c := buildSampleTree(t, db)

	tree, err := svc.Tree(ctx, root.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, root.ID, tree.ID)
	assert.Equal(t, 0, tree.Depth)
	require.Len(t, tree.Children, 2)

	var nodeA *TreeNode
	for _, child := range tree.Children {
		if child.ID == a.ID {
			nodeA = child
		} else {
			assert.Equal(t, b.ID, child.ID)
			assert.Empty(t, child.Children)
		}
	}
	require.NotNil(t, nodeA)
	require.Len(t, nodeA.Children, 1)
	assert.Equal(t, c.ID, nodeA.Children[0].ID)
	assert.Equal(t, 2, nodeA.Children[0].Depth)
}

func TestFlagUnflagLifecycle(t *testing.T) {
	svc, db := newTreeService(t)
	ctx := context.Background()
	root := mustCreateRoot(t, db, "root", 10)
	admin := uuid.New()
	meta := RequestMeta{IP: "10.0.0.1", UserAgent: "test"}

	require.NoError(t, svc.Flag(ctx, root.ID, admin, "spam wave", meta))

	got, err := svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NodeStatusFlagged, got.Status)
	assert.EqualValues(t, 1, countEvents(t, db, model.EventNodeFlagged))

	// Flagging twice is not a valid transition.
	assert.ErrorIs(t, svc.Flag(ctx, root.ID, admin, "again", meta), ErrInvalidStatus)

	require.NoError(t, svc.Unflag(ctx, root.ID, admin, "false positive", meta))
	got, err = svc.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NodeStatusActive, got.Status)
	assert.EqualValues(t, 1, countEvents(t, db, model.EventNodeUnflagged))
}

func TestFlagUnknownNode(t *testing.T) {
	svc, _ := newTreeService(t)
	err := svc.Flag(context.Background(), uuid.New(), uuid.New(), "x", RequestMeta{})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

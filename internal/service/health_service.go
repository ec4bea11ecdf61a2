package service

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

// Band weights and status penalties of the health formula.
const (
	band1Weight = 0.5
	band2Weight = 0.3
	band3Weight = 0.2

	flaggedPenalty = 10.0
	bannedPenalty  = 25.0
)

// HealthThresholds are the configurable knobs of scoring and maturity
// classification.
type HealthThresholds struct {
	LowThreshold  float64
	TrunkMinAge   time.Duration
	TrunkMinScore float64
	TrunkMinDepth int
	TrunkMinSize  int
	BatchWorkers  int
}

// StatusNotifier receives low-health flag requests. The scorer only
// signals; whether a node's status actually changes is decided outside
// the core.
type StatusNotifier interface {
	NotifyLowHealth(ctx context.Context, nodeID uuid.UUID, score float64)
}

// LogStatusNotifier is the default notifier: it records the signal and
// does nothing else.
type LogStatusNotifier struct {
	Logger *zap.Logger
}

func (n *LogStatusNotifier) NotifyLowHealth(_ context.Context, nodeID uuid.UUID, score float64) {
	n.Logger.Warn("low health score",
		zap.String("node_id", nodeID.String()),
		zap.Float64("score", score))
}

type HealthService interface {
	// ScoreNode runs one deterministic, read-only scoring pass and
	// appends a snapshot. It never mutates the tree.
	ScoreNode(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error)
	// RunBatch scores every live node; per-node failures are logged and
	// skipped. Safe to invoke repeatedly and concurrently with writers.
	RunBatch(ctx context.Context) (int, error)
	Latest(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error)
	History(ctx context.Context, nodeID uuid.UUID, limit int) ([]model.HealthSnapshot, error)
}

type healthService struct {
	tree       TreeService
	nodes      repository.NodeRepository
	snapshots  repository.HealthSnapshotRepository
	notifier   StatusNotifier
	thresholds HealthThresholds
	logger     *zap.Logger
}

func NewHealthService(
	tree TreeService,
	nodes repository.NodeRepository,
	snapshots repository.HealthSnapshotRepository,
	notifier StatusNotifier,
	thresholds HealthThresholds,
	logger *zap.Logger,
) HealthService {
	if thresholds.BatchWorkers <= 0 {
		thresholds.BatchWorkers = 4
	}
	return &healthService{
		tree:       tree,
		nodes:      nodes,
		snapshots:  snapshots,
		notifier:   notifier,
		thresholds: thresholds,
		logger:     logger,
	}
}

// bandRatio is the active percentage of one depth band. An empty band is
// not evidence of poor health and defaults to 100.
func bandRatio(active, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return float64(active) / float64(total) * 100.0
}

// computeScore applies the weighted band formula with flat penalties for
// flagged and banned descendants, clamped to [0,100].
func computeScore(stats *SubtreeStats) float64 {
	raw := band1Weight*bandRatio(stats.Band1Active, stats.Band1Total) +
		band2Weight*bandRatio(stats.Band2Active, stats.Band2Total) +
		band3Weight*bandRatio(stats.Band3Active, stats.Band3Total)

	penalty := flaggedPenalty*float64(stats.FlaggedCount) + bannedPenalty*float64(stats.BannedCount)

	score := raw - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100
}

func (s *healthService) maturity(node *model.Node, score float64, stats *SubtreeStats, now time.Time) model.MaturityLevel {
	if node.IsCoreMember {
		return model.MaturityCore
	}
	if now.Sub(node.CreatedAt) >= s.thresholds.TrunkMinAge &&
		score >= s.thresholds.TrunkMinScore &&
		stats.MaxDepth >= s.thresholds.TrunkMinDepth &&
		stats.TotalDescendants >= s.thresholds.TrunkMinSize {
		return model.MaturitySupportingTrunk
	}
	return model.MaturityBranch
}

func (s *healthService) ScoreNode(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error) {
	node, err := s.tree.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	stats, err := s.tree.SubtreeStats(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	score := computeScore(stats)

	snapshot := &model.HealthSnapshot{
		NodeID:        nodeID,
		SubtreeSize:   stats.TotalDescendants,
		ActiveCount:   stats.ActiveCount,
		FlaggedCount:  stats.FlaggedCount,
		BannedCount:   stats.BannedCount,
		MaxDepth:      stats.MaxDepth,
		Band1Total:    stats.Band1Total,
		Band1Active:   stats.Band1Active,
		Band2Total:    stats.Band2Total,
		Band2Active:   stats.Band2Active,
		Band3Total:    stats.Band3Total,
		Band3Active:   stats.Band3Active,
		Score:         score,
		MaturityLevel: s.maturity(node, score, stats, now),
		CalculatedAt:  now,
	}
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		return nil, err
	}

	if score < s.thresholds.LowThreshold {
		s.notifier.NotifyLowHealth(ctx, nodeID, score)
	}
	return snapshot, nil
}

func (s *healthService) RunBatch(ctx context.Context) (int, error) {
	ids, err := s.nodes.ListLiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	var processed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.thresholds.BatchWorkers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.ScoreNode(gctx, id); err != nil {
				// A node pruned mid-batch is expected; anything else is
				// logged and the batch continues.
				s.logger.Warn("health scoring failed",
					zap.String("node_id", id.String()),
					zap.Error(err))
				return nil
			}
			atomic.AddInt64(&processed, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(atomic.LoadInt64(&processed)), err
	}
	return int(atomic.LoadInt64(&processed)), nil
}

func (s *healthService) Latest(ctx context.Context, nodeID uuid.UUID) (*model.HealthSnapshot, error) {
	return s.snapshots.LatestByNode(ctx, nodeID)
}

func (s *healthService) History(ctx context.Context, nodeID uuid.UUID, limit int) ([]model.HealthSnapshot, error) {
	return s.snapshots.ListByNode(ctx, nodeID, limit)
}

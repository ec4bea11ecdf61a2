package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

// PreviewEntry is one node of a prune preview: identity, position, and
// how much of the subtree hangs below it.
type PreviewEntry struct {
	ID              uuid.UUID        `json:"id"`
	DisplayName     string           `json:"display_name"`
	Status          model.NodeStatus `json:"status"`
	Depth           int              `json:"depth"`
	CreatedAt       time.Time        `json:"created_at"`
	DescendantCount int              `json:"descendant_count"`
}

// PrunePreview is the read-only answer of Preview.
type PrunePreview struct {
	AffectedCount int            `json:"affected_count"`
	AffectedNodes []PreviewEntry `json:"affected_nodes"`
}

type PruneService interface {
	// Preview reports what Execute would remove: the root plus all live
	// descendants. Pure read, safe to call repeatedly.
	Preview(ctx context.Context, rootID uuid.UUID) (*PrunePreview, error)
	// Execute soft-deletes the whole subtree in one atomic transaction,
	// re-deriving the affected set inside it: a caller-supplied preview
	// is never trusted.
	Execute(ctx context.Context, rootID uuid.UUID, reason string, actor uuid.UUID, meta RequestMeta) (*model.PruneOperation, error)
	// Rollback is a distinct compensating operation: it restores the
	// nodes listed in a completed operation's snapshot and writes fresh
	// audit events. The original record is preserved.
	Rollback(ctx context.Context, opID, actor uuid.UUID, meta RequestMeta) (*model.PruneOperation, error)
	Get(ctx context.Context, opID uuid.UUID) (*model.PruneOperation, error)
	List(ctx context.Context, limit, offset int) ([]model.PruneOperation, error)
}

type pruneService struct {
	db     *gorm.DB
	nodes  repository.NodeRepository
	ops    repository.PruneOperationRepository
	events repository.AuditEventRepository
	logger *zap.Logger
}

func NewPruneService(
	db *gorm.DB,
	nodes repository.NodeRepository,
	ops repository.PruneOperationRepository,
	events repository.AuditEventRepository,
	logger *zap.Logger,
) PruneService {
	return &pruneService{db: db, nodes: nodes, ops: ops, events: events, logger: logger}
}

// affectedSet enumerates root + live descendants on the given repository
// scope. Depth limits are never applied here.
func affectedSet(ctx context.Context, nodes repository.NodeRepository, rootID uuid.UUID) (*model.Node, []NodeWithDepth, error) {
	root, err := nodes.GetByIDAny(ctx, rootID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load root: %w", err)
	}
	if root.IsDeleted() {
		return nil, nil, ErrAlreadyPruned
	}
	descs, err := descendants(ctx, nodes, rootID, 0, false)
	if err != nil {
		return nil, nil, err
	}
	return root, descs, nil
}

func (s *pruneService) Preview(ctx context.Context, rootID uuid.UUID) (*PrunePreview, error) {
	root, descs, err := affectedSet(ctx, s.nodes, rootID)
	if err != nil {
		return nil, err
	}

	// Subtree sizes fall out of one pass over parent pointers: every
	// node contributes to each of its ancestors within the affected set.
	sizes := make(map[uuid.UUID]int, len(descs)+1)
	parents := make(map[uuid.UUID]uuid.UUID, len(descs))
	for _, d := range descs {
		parents[d.ID] = *d.ParentID
	}
	for _, d := range descs {
		for cur := parents[d.ID]; ; {
			sizes[cur]++
			next, ok := parents[cur]
			if !ok {
				break
			}
			cur = next
		}
	}

	entries := make([]PreviewEntry, 0, len(descs)+1)
	entries = append(entries, PreviewEntry{
		ID:              root.ID,
		DisplayName:     root.DisplayName,
		Status:          root.Status,
		Depth:           0,
		CreatedAt:       root.CreatedAt,
		DescendantCount: len(descs),
	})
	for _, d := range descs {
		entries = append(entries, PreviewEntry{
			ID:              d.ID,
			DisplayName:     d.DisplayName,
			Status:          d.Status,
			Depth:           d.Depth,
			CreatedAt:       d.CreatedAt,
			DescendantCount: sizes[d.ID],
		})
	}
	return &PrunePreview{AffectedCount: len(entries), AffectedNodes: entries}, nil
}

func (s *pruneService) Execute(ctx context.Context, rootID uuid.UUID, reason string, actor uuid.UUID, meta RequestMeta) (*model.PruneOperation, error) {
	now := time.Now()

	var op *model.PruneOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		ops := s.ops.WithTx(tx)
		events := s.events.WithTx(tx)

		root, descs, err := affectedSet(ctx, nodes, rootID)
		if err != nil {
			return err
		}
		if root.IsCoreMember {
			return ErrCannotPruneCore
		}

		snapshot := make(model.AffectedNodes, 0, len(descs)+1)
		ids := make([]uuid.UUID, 0, len(descs)+1)
		snapshot = append(snapshot, model.AffectedNode{
			ID:          root.ID,
			DisplayName: root.DisplayName,
			Status:      root.Status,
			Depth:       0,
			CreatedAt:   root.CreatedAt,
		})
		ids = append(ids, root.ID)
		for _, d := range descs {
			snapshot = append(snapshot, model.AffectedNode{
				ID:          d.ID,
				DisplayName: d.DisplayName,
				Status:      d.Status,
				Depth:       d.Depth,
				CreatedAt:   d.CreatedAt,
			})
			ids = append(ids, d.ID)
		}

		op = &model.PruneOperation{
			RootID:        rootID,
			AffectedCount: len(ids),
			Reason:        reason,
			ExecutedByID:  actor,
			Status:        model.PruneStatusPending,
			AffectedNodes: snapshot,
		}
		if err := ops.Create(ctx, op); err != nil {
			return fmt.Errorf("create prune operation: %w", err)
		}

		hit, err := nodes.SoftDeleteBatch(ctx, ids, "Pruned: "+reason, now)
		if err != nil {
			return fmt.Errorf("soft delete subtree: %w", err)
		}
		if hit != int64(len(ids)) {
			// A concurrent prune removed part of the set between
			// enumeration and update. Roll everything back; a retry
			// recomputes the remainder.
			return ErrPruneConflict
		}

		for _, n := range snapshot {
			nodeID := n.ID
			event := &model.AuditEvent{
				EventKind: model.EventNodePruned,
				ActorID:   &actor,
				TargetID:  &nodeID,
				Payload: model.EventPayload{
					"prune_operation_id": op.ID.String(),
					"reason":             reason,
					"depth":              n.Depth,
				},
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
			}
			if err := events.Append(ctx, event); err != nil {
				return fmt.Errorf("append audit event: %w", err)
			}
		}

		res := tx.Model(op).Updates(map[string]interface{}{
			"status":      model.PruneStatusCompleted,
			"executed_at": now,
		})
		if res.Error != nil {
			return fmt.Errorf("complete prune operation: %w", res.Error)
		}
		op.Status = model.PruneStatusCompleted
		op.ExecutedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("branch pruned",
		zap.String("operation_id", op.ID.String()),
		zap.String("root_id", rootID.String()),
		zap.Int("affected", op.AffectedCount))
	return op, nil
}

func (s *pruneService) Rollback(ctx context.Context, opID, actor uuid.UUID, meta RequestMeta) (*model.PruneOperation, error) {
	var restored *model.PruneOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		ops := s.ops.WithTx(tx)
		events := s.events.WithTx(tx)

		op, err := ops.GetByID(ctx, opID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOperationNotFound
		}
		if err != nil {
			return fmt.Errorf("load prune operation: %w", err)
		}
		if op.Status != model.PruneStatusCompleted {
			return ErrRollbackNotAllowed
		}

		for _, n := range op.AffectedNodes {
			// Pre-prune status comes from the snapshot; a node that was
			// already banned before the prune stays banned only when the
			// snapshot says so.
			status := n.Status
			if !status.Valid() {
				status = model.NodeStatusActive
			}
			ok, err := nodes.Restore(ctx, n.ID, status)
			if err != nil {
				return fmt.Errorf("restore node %s: %w", n.ID, err)
			}
			if !ok {
				// Already restored by hand or re-created; skip quietly.
				continue
			}
			nodeID := n.ID
			event := &model.AuditEvent{
				EventKind: model.EventPruneRolledBack,
				ActorID:   &actor,
				TargetID:  &nodeID,
				Payload: model.EventPayload{
					"prune_operation_id": op.ID.String(),
					"original_reason":    op.Reason,
					"restored_status":    string(status),
				},
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
			}
			if err := events.Append(ctx, event); err != nil {
				return fmt.Errorf("append audit event: %w", err)
			}
		}

		ok, err := ops.MarkRolledBack(ctx, opID)
		if err != nil {
			return fmt.Errorf("mark rolled back: %w", err)
		}
		if !ok {
			return ErrRollbackNotAllowed
		}

		restored, err = ops.GetByID(ctx, opID)
		if err != nil {
			return fmt.Errorf("reload prune operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *pruneService) Get(ctx context.Context, opID uuid.UUID) (*model.PruneOperation, error) {
	op, err := s.ops.GetByID(ctx, opID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load prune operation: %w", err)
	}
	return op, nil
}

func (s *pruneService) List(ctx context.Context, limit, offset int) ([]model.PruneOperation, error) {
	return s.ops.List(ctx, limit, offset)
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

// maxAncestorHops bounds the parent walk. Parent links are acyclic by
// construction, so hitting the ceiling means corrupted data.
const maxAncestorHops = 256

// maxTraversalDepth bounds descendant enumeration for the same reason.
const maxTraversalDepth = 512

// NodeWithDepth annotates a node with its distance from the traversal root.
type NodeWithDepth struct {
	model.Node
	Depth int `json:"depth"`
}

// SubtreeStats summarizes a subtree's composition, banded by depth:
// direct children (band 1), level 2 (band 2), level 3 and deeper (band 3).
type SubtreeStats struct {
	TotalDescendants int `json:"total_descendants"`
	ActiveCount      int `json:"active_count"`
	FlaggedCount     int `json:"flagged_count"`
	BannedCount      int `json:"banned_count"`
	SuspendedCount   int `json:"suspended_count"`
	MaxDepth         int `json:"max_depth"`
	DirectChildren   int `json:"direct_children"`

	Band1Total  int `json:"band1_total"`
	Band1Active int `json:"band1_active"`
	Band2Total  int `json:"band2_total"`
	Band2Active int `json:"band2_active"`
	Band3Total  int `json:"band3_total"`
	Band3Active int `json:"band3_active"`
}

// TreeNode is a nested structure for display.
type TreeNode struct {
	model.Node
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children"`
}

type TreeService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Node, error)
	// Insert creates a node whose parent is fixed at creation. The parent
	// must exist and must not be soft-deleted.
	Insert(ctx context.Context, node *model.Node) error
	// Ancestors returns the chain of parents, nearest first, excluding
	// the node itself.
	Ancestors(ctx context.Context, id uuid.UUID) ([]model.Node, error)
	// Descendants enumerates the subtree below rootID, breadth first,
	// excluding the root. maxDepth <= 0 means unlimited; depth limits are
	// for display only and must never be applied on prune paths.
	Descendants(ctx context.Context, rootID uuid.UUID, maxDepth int, includeDeleted bool) ([]NodeWithDepth, error)
	SubtreeStats(ctx context.Context, rootID uuid.UUID) (*SubtreeStats, error)
	DirectChildren(ctx context.Context, id uuid.UUID) ([]model.Node, error)
	Tree(ctx context.Context, rootID uuid.UUID, maxDepth int) (*TreeNode, error)

	Flag(ctx context.Context, id, actor uuid.UUID, reason string, meta RequestMeta) error
	Unflag(ctx context.Context, id, actor uuid.UUID, reason string, meta RequestMeta) error
}

type treeService struct {
	db     *gorm.DB
	nodes  repository.NodeRepository
	events repository.AuditEventRepository
}

func NewTreeService(db *gorm.DB, nodes repository.NodeRepository, events repository.AuditEventRepository) TreeService {
	return &treeService{db: db, nodes: nodes, events: events}
}

func (s *treeService) Get(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	node, err := s.nodes.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// insertNode performs the parent checks and creation shared by direct
// inserts and token consumption (which runs it on a transaction-scoped
// repository).
func insertNode(ctx context.Context, nodes repository.NodeRepository, node *model.Node) error {
	if node.ParentID != nil {
		parent, err := nodes.GetByIDAny(ctx, *node.ParentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParentNotFound
		}
		if err != nil {
			return fmt.Errorf("load parent: %w", err)
		}
		if parent.IsDeleted() {
			return ErrParentDeleted
		}
	}
	if node.Status == "" {
		node.Status = model.NodeStatusActive
	}
	if err := nodes.Create(ctx, node); err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	return nil
}

func (s *treeService) Insert(ctx context.Context, node *model.Node) error {
	return insertNode(ctx, s.nodes, node)
}

func (s *treeService) Ancestors(ctx context.Context, id uuid.UUID) ([]model.Node, error) {
	node, err := s.nodes.GetByIDAny(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load node: %w", err)
	}

	seen := map[uuid.UUID]struct{}{node.ID: {}}
	var ancestors []model.Node

	current := node
	for hops := 0; current.ParentID != nil; hops++ {
		if hops >= maxAncestorHops {
			return nil, fmt.Errorf("%w: ancestor walk exceeded %d hops from %s", ErrIntegrityViolation, maxAncestorHops, id)
		}
		parent, err := s.nodes.GetByIDAny(ctx, *current.ParentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dangling parent reference %s", ErrIntegrityViolation, *current.ParentID)
		}
		if err != nil {
			return nil, fmt.Errorf("load ancestor: %w", err)
		}
		if _, dup := seen[parent.ID]; dup {
			return nil, fmt.Errorf("%w: ancestor cycle through %s", ErrIntegrityViolation, parent.ID)
		}
		seen[parent.ID] = struct{}{}
		ancestors = append(ancestors, *parent)
		current = parent
	}
	return ancestors, nil
}

func (s *treeService) Descendants(ctx context.Context, rootID uuid.UUID, maxDepth int, includeDeleted bool) ([]NodeWithDepth, error) {
	return descendants(ctx, s.nodes, rootID, maxDepth, includeDeleted)
}

// descendants is the adjacency-list traversal behind Descendants, shared
// with the prune engine so it can re-run the enumeration on its own
// transaction.
func descendants(ctx context.Context, nodes repository.NodeRepository, rootID uuid.UUID, maxDepth int, includeDeleted bool) ([]NodeWithDepth, error) {
	if _, err := nodes.GetByIDAny(ctx, rootID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("load root: %w", err)
	}

	seen := map[uuid.UUID]struct{}{rootID: {}}
	frontier := []uuid.UUID{rootID}
	var result []NodeWithDepth

	for depth := 1; len(frontier) > 0; depth++ {
		if depth > maxTraversalDepth {
			return nil, fmt.Errorf("%w: subtree of %s deeper than %d levels", ErrIntegrityViolation, rootID, maxTraversalDepth)
		}
		if maxDepth > 0 && depth > maxDepth {
			break
		}
		children, err := nodes.ListChildren(ctx, frontier, includeDeleted)
		if err != nil {
			return nil, fmt.Errorf("list children: %w", err)
		}
		frontier = frontier[:0]
		for _, child := range children {
			if _, dup := seen[child.ID]; dup {
				return nil, fmt.Errorf("%w: node %s reached twice", ErrIntegrityViolation, child.ID)
			}
			seen[child.ID] = struct{}{}
			result = append(result, NodeWithDepth{Node: child, Depth: depth})
			frontier = append(frontier, child.ID)
		}
	}
	return result, nil
}

func (s *treeService) SubtreeStats(ctx context.Context, rootID uuid.UUID) (*SubtreeStats, error) {
	descs, err := s.Descendants(ctx, rootID, 0, false)
	if err != nil {
		return nil, err
	}
	return computeStats(descs), nil
}

func computeStats(descs []NodeWithDepth) *SubtreeStats {
	stats := &SubtreeStats{TotalDescendants: len(descs)}
	for _, d := range descs {
		active := d.Status == model.NodeStatusActive
		switch d.Status {
		case model.NodeStatusActive:
			stats.ActiveCount++
		case model.NodeStatusFlagged:
			stats.FlaggedCount++
		case model.NodeStatusBanned:
			stats.BannedCount++
		case model.NodeStatusSuspended:
			stats.SuspendedCount++
		}
		if d.Depth > stats.MaxDepth {
			stats.MaxDepth = d.Depth
		}
		switch {
		case d.Depth == 1:
			stats.DirectChildren++
			stats.Band1Total++
			if active {
				stats.Band1Active++
			}
		case d.Depth == 2:
			stats.Band2Total++
			if active {
				stats.Band2Active++
			}
		default:
			stats.Band3Total++
			if active {
				stats.Band3Active++
			}
		}
	}
	return stats
}

func (s *treeService) DirectChildren(ctx context.Context, id uuid.UUID) ([]model.Node, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.nodes.ListChildren(ctx, []uuid.UUID{id}, false)
}

func (s *treeService) Tree(ctx context.Context, rootID uuid.UUID, maxDepth int) (*TreeNode, error) {
	root, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	descs, err := s.Descendants(ctx, rootID, maxDepth, false)
	if err != nil {
		return nil, err
	}

	lookup := map[uuid.UUID]*TreeNode{
		rootID: {Node: *root, Depth: 0, Children: []*TreeNode{}},
	}
	for _, d := range descs {
		lookup[d.ID] = &TreeNode{Node: d.Node, Depth: d.Depth, Children: []*TreeNode{}}
	}
	for _, d := range descs {
		parent := lookup[*d.ParentID]
		parent.Children = append(parent.Children, lookup[d.ID])
	}
	return lookup[rootID], nil
}

func (s *treeService) Flag(ctx context.Context, id, actor uuid.UUID, reason string, meta RequestMeta) error {
	return s.setFlagged(ctx, id, &actor, reason, meta, true)
}

func (s *treeService) Unflag(ctx context.Context, id, actor uuid.UUID, reason string, meta RequestMeta) error {
	return s.setFlagged(ctx, id, &actor, reason, meta, false)
}

func (s *treeService) setFlagged(ctx context.Context, id uuid.UUID, actor *uuid.UUID, reason string, meta RequestMeta, flag bool) error {
	from, to := model.NodeStatusActive, model.NodeStatusFlagged
	kind := model.EventNodeFlagged
	if !flag {
		from, to = model.NodeStatusFlagged, model.NodeStatusActive
		kind = model.EventNodeUnflagged
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		node, err := nodes.GetByID(ctx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNodeNotFound
		}
		if err != nil {
			return fmt.Errorf("load node: %w", err)
		}
		if node.Status != from {
			return ErrInvalidStatus
		}
		if _, err := nodes.UpdateStatus(ctx, id, to); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		event := &model.AuditEvent{
			EventKind: kind,
			ActorID:   actor,
			TargetID:  &id,
			Payload: model.EventPayload{
				"reason":      reason,
				"from_status": string(from),
				"to_status":   string(to),
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
		}
		if err := s.events.WithTx(tx).Append(ctx, event); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		return nil
	})
}

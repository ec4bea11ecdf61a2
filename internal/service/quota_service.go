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

// QuotaService is the invite-capacity ledger. Debit and credit are
// single conditional UPDATEs, so concurrent calls for the same owner
// serialize on the row and the 0 <= used <= quota invariant holds
// without application-level locks.
type QuotaService interface {
	Debit(ctx context.Context, ownerID uuid.UUID, amount int) error
	Credit(ctx context.Context, ownerID uuid.UUID, amount int) error
	// Adjust sets a node's quota ceiling and records a quota_adjusted
	// audit event in the same transaction.
	Adjust(ctx context.Context, ownerID uuid.UUID, newQuota int, actor uuid.UUID, reason string, meta RequestMeta) (*model.Node, error)
}

type quotaService struct {
	db     *gorm.DB
	nodes  repository.NodeRepository
	events repository.AuditEventRepository
}

func NewQuotaService(db *gorm.DB, nodes repository.NodeRepository, events repository.AuditEventRepository) QuotaService {
	return &quotaService{db: db, nodes: nodes, events: events}
}

func (s *quotaService) Debit(ctx context.Context, ownerID uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}
	ok, err := s.nodes.DebitQuota(ctx, ownerID, amount)
	if err != nil {
		return fmt.Errorf("debit quota: %w", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	return nil
}

func (s *quotaService) Credit(ctx context.Context, ownerID uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}
	ok, err := s.nodes.CreditQuota(ctx, ownerID, amount)
	if err != nil {
		return fmt.Errorf("credit quota: %w", err)
	}
	if !ok {
		// Crediting below zero would corrupt the ledger; the guard
		// clamps by refusing instead.
		return ErrQuotaBelowUsed
	}
	return nil
}

func (s *quotaService) Adjust(ctx context.Context, ownerID uuid.UUID, newQuota int, actor uuid.UUID, reason string, meta RequestMeta) (*model.Node, error) {
	if newQuota < 0 {
		return nil, ErrQuotaBelowUsed
	}

	var updated *model.Node
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		events := s.events.WithTx(tx)

		node, err := nodes.GetByID(ctx, ownerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNodeNotFound
		}
		if err != nil {
			return fmt.Errorf("load node: %w", err)
		}

		ok, err := nodes.SetQuota(ctx, ownerID, newQuota)
		if err != nil {
			return fmt.Errorf("set quota: %w", err)
		}
		if !ok {
			return ErrQuotaBelowUsed
		}

		event := &model.AuditEvent{
			EventKind: model.EventQuotaAdjusted,
			ActorID:   &actor,
			TargetID:  &ownerID,
			Payload: model.EventPayload{
				"old_quota": node.InviteQuota,
				"new_quota": newQuota,
				"reason":    reason,
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
		}
		if err := events.Append(ctx, event); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}

		updated, err = nodes.GetByID(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("reload node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

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
	"invitetree/graph/pkg/crypto"
)

// tokenPrefix shortens a token value for audit payloads; full values
// never land in the log.
func tokenPrefix(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:8] + "..."
}

// ValidationResult is the side-effect-free answer of Validate.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Registration carries the attributes of the node a consumed token creates.
type Registration struct {
	NodeID      uuid.UUID // optional; generated when zero
	DisplayName string
	Meta        RequestMeta
}

type TokenService interface {
	// Create issues count tokens for ownerID, debiting the owner's quota
	// in the same transaction.
	Create(ctx context.Context, ownerID uuid.UUID, count int, note string, meta RequestMeta) ([]model.InviteToken, error)
	// Validate checks a token value without side effects; safe to call
	// unauthenticated and repeatedly.
	Validate(ctx context.Context, value string) (*ValidationResult, error)
	// Consume atomically marks the token used and inserts the new node
	// under the token creator. Exactly one concurrent caller wins.
	Consume(ctx context.Context, value string, reg Registration) (*model.Node, error)
	// Revoke cancels an unused token and credits the quota back.
	Revoke(ctx context.Context, tokenID, actor uuid.UUID, reason string, meta RequestMeta) (*model.InviteToken, error)
	// SweepExpired revokes unused tokens past expiry. Idempotent: swept
	// tokens are excluded by their revoked flag.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.InviteToken, error)
}

type tokenService struct {
	db           *gorm.DB
	nodes        repository.NodeRepository
	tokens       repository.TokenRepository
	events       repository.AuditEventRepository
	tokenTTL     time.Duration
	defaultQuota int
	maxBatchSize int
	logger       *zap.Logger
}

func NewTokenService(
	db *gorm.DB,
	nodes repository.NodeRepository,
	tokens repository.TokenRepository,
	events repository.AuditEventRepository,
	tokenTTL time.Duration,
	defaultQuota int,
	maxBatchSize int,
	logger *zap.Logger,
) TokenService {
	return &tokenService{
		db:           db,
		nodes:        nodes,
		tokens:       tokens,
		events:       events,
		tokenTTL:     tokenTTL,
		defaultQuota: defaultQuota,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

func (s *tokenService) Create(ctx context.Context, ownerID uuid.UUID, count int, note string, meta RequestMeta) ([]model.InviteToken, error) {
	if count <= 0 {
		count = 1
	}
	if s.maxBatchSize > 0 && count > s.maxBatchSize {
		count = s.maxBatchSize
	}

	var created []model.InviteToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		tokens := s.tokens.WithTx(tx)
		events := s.events.WithTx(tx)

		if _, err := nodes.GetByID(ctx, ownerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNodeNotFound
			}
			return fmt.Errorf("load owner: %w", err)
		}

		ok, err := nodes.DebitQuota(ctx, ownerID, count)
		if err != nil {
			return fmt.Errorf("debit quota: %w", err)
		}
		if !ok {
			return ErrQuotaExceeded
		}

		expiresAt := time.Now().Add(s.tokenTTL)
		for i := 0; i < count; i++ {
			value, err := crypto.GenerateTokenValue()
			if err != nil {
				return fmt.Errorf("generate token value: %w", err)
			}
			token := model.InviteToken{
				Token:       value,
				CreatedByID: ownerID,
				ExpiresAt:   expiresAt,
				Note:        note,
			}
			if err := tokens.Create(ctx, &token); err != nil {
				return fmt.Errorf("create token: %w", err)
			}
			event := &model.AuditEvent{
				EventKind: model.EventTokenCreated,
				ActorID:   &ownerID,
				TargetID:  &ownerID,
				TokenID:   &token.ID,
				Payload: model.EventPayload{
					"token":      tokenPrefix(token.Token),
					"expires_at": expiresAt.Format(time.RFC3339),
					"note":       note,
				},
				IPAddress: meta.IP,
				UserAgent: meta.UserAgent,
			}
			if err := events.Append(ctx, event); err != nil {
				return fmt.Errorf("append audit event: %w", err)
			}
			created = append(created, token)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *tokenService) Validate(ctx context.Context, value string) (*ValidationResult, error) {
	token, err := s.tokens.GetByValue(ctx, value)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ValidationResult{Valid: false, Reason: "not_found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	switch {
	case token.IsUsed:
		return &ValidationResult{Valid: false, Reason: "used"}, nil
	case token.IsRevoked:
		return &ValidationResult{Valid: false, Reason: "revoked"}, nil
	case token.IsExpired(time.Now()):
		return &ValidationResult{Valid: false, Reason: "expired"}, nil
	}
	return &ValidationResult{Valid: true}, nil
}

func (s *tokenService) Consume(ctx context.Context, value string, reg Registration) (*model.Node, error) {
	now := time.Now()
	newID := reg.NodeID
	if newID == uuid.Nil {
		newID = uuid.New()
	}

	var node *model.Node
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		tokens := s.tokens.WithTx(tx)
		events := s.events.WithTx(tx)

		token, err := tokens.GetByValue(ctx, value)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		if err := classifyUnusable(token, now); err != nil {
			return err
		}

		// The compare-and-set on is_used decides the race between
		// concurrent consumers; losers observe zero rows affected.
		won, err := tokens.MarkUsed(ctx, value, newID, now, reg.Meta.IP, reg.Meta.UserAgent)
		if err != nil {
			return fmt.Errorf("mark token used: %w", err)
		}
		if !won {
			return ErrTokenAlreadyUsed
		}

		parentID := token.CreatedByID
		node = &model.Node{
			ID:                    newID,
			DisplayName:           reg.DisplayName,
			ParentID:              &parentID,
			Status:                model.NodeStatusActive,
			InviteQuota:           s.defaultQuota,
			RegistrationIP:        reg.Meta.IP,
			RegistrationUserAgent: reg.Meta.UserAgent,
		}
		if err := insertNode(ctx, nodes, node); err != nil {
			return err
		}

		event := &model.AuditEvent{
			EventKind: model.EventTokenUsed,
			ActorID:   &node.ID,
			TargetID:  &parentID,
			TokenID:   &token.ID,
			Payload: model.EventPayload{
				"token":       tokenPrefix(token.Token),
				"new_node_id": node.ID.String(),
			},
			IPAddress: reg.Meta.IP,
			UserAgent: reg.Meta.UserAgent,
		}
		if err := events.Append(ctx, event); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// classifyUnusable maps a token's state to the typed consume error, or
// nil when the token is still consumable at now.
func classifyUnusable(token *model.InviteToken, now time.Time) error {
	switch {
	case token.IsUsed:
		return ErrTokenAlreadyUsed
	case token.IsRevoked:
		return ErrTokenRevoked
	case token.IsExpired(now):
		return ErrTokenExpired
	}
	return nil
}

func (s *tokenService) Revoke(ctx context.Context, tokenID, actor uuid.UUID, reason string, meta RequestMeta) (*model.InviteToken, error) {
	now := time.Now()

	var revoked *model.InviteToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nodes := s.nodes.WithTx(tx)
		tokens := s.tokens.WithTx(tx)
		events := s.events.WithTx(tx)

		token, err := tokens.GetByID(ctx, tokenID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		if token.IsUsed {
			return ErrTokenAlreadyUsed
		}
		if token.IsRevoked {
			return ErrTokenAlreadyRevoked
		}

		ok, err := tokens.MarkRevoked(ctx, tokenID, &actor, reason, now)
		if err != nil {
			return fmt.Errorf("mark token revoked: %w", err)
		}
		if !ok {
			// Lost a race with a concurrent revoke or consume.
			return ErrTokenAlreadyRevoked
		}

		// Capacity always returns to the creator. MarkRevoked succeeding
		// means the sweep has not touched this token, and the sweep skips
		// revoked tokens, so this is the only path that can credit it.
		if _, err := nodes.CreditQuota(ctx, token.CreatedByID, 1); err != nil {
			return fmt.Errorf("credit quota: %w", err)
		}

		event := &model.AuditEvent{
			EventKind: model.EventTokenRevoked,
			ActorID:   &actor,
			TargetID:  &token.CreatedByID,
			TokenID:   &token.ID,
			Payload: model.EventPayload{
				"token":         tokenPrefix(token.Token),
				"reason":        reason,
				"credited_back": true,
			},
			IPAddress: meta.IP,
			UserAgent: meta.UserAgent,
		}
		if err := events.Append(ctx, event); err != nil {
			return fmt.Errorf("append audit event: %w", err)
		}

		revoked, err = tokens.GetByID(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("reload token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

func (s *tokenService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.tokens.ListSweepable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list sweepable tokens: %w", err)
	}

	swept := 0
	for i := range expired {
		token := expired[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			nodes := s.nodes.WithTx(tx)
			tokens := s.tokens.WithTx(tx)
			events := s.events.WithTx(tx)

			// Another sweeper or a concurrent revoke may have handled
			// this token since the listing; zero rows means skip.
			ok, err := tokens.MarkRevoked(ctx, token.ID, nil, "auto-expired", now)
			if err != nil {
				return fmt.Errorf("mark token revoked: %w", err)
			}
			if !ok {
				return nil
			}
			if _, err := nodes.CreditQuota(ctx, token.CreatedByID, 1); err != nil {
				return fmt.Errorf("credit quota: %w", err)
			}
			event := &model.AuditEvent{
				EventKind: model.EventTokenExpired,
				TargetID:  &token.CreatedByID,
				TokenID:   &token.ID,
				Payload: model.EventPayload{
					"token":      tokenPrefix(token.Token),
					"expired_at": token.ExpiresAt.Format(time.RFC3339),
				},
			}
			if err := events.Append(ctx, event); err != nil {
				return fmt.Errorf("append audit event: %w", err)
			}
			swept++
			return nil
		})
		if err != nil {
			s.logger.Error("sweep failed for token",
				zap.String("token_id", token.ID.String()),
				zap.Error(err))
			continue
		}
	}
	return swept, nil
}

func (s *tokenService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.InviteToken, error) {
	return s.tokens.ListByCreator(ctx, ownerID)
}

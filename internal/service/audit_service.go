package service

import (
	"context"

	"invitetree/graph/internal/model"
	"invitetree/graph/internal/repository"
)

// AuditPage is one page of forensic history, newest first.
type AuditPage struct {
	Events []model.AuditEvent `json:"events"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// AuditService is the read side of the audit log. Writes happen only
// through repository.AuditEventRepository.Append inside the mutating
// services' transactions, so every observable state change carries an
// event or did not happen at all.
type AuditService interface {
	Query(ctx context.Context, filter repository.AuditFilter) (*AuditPage, error)
}

type auditService struct {
	events repository.AuditEventRepository
}

func NewAuditService(events repository.AuditEventRepository) AuditService {
	return &auditService{events: events}
}

func (s *auditService) Query(ctx context.Context, filter repository.AuditFilter) (*AuditPage, error) {
	events, err := s.events.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.events.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return &AuditPage{Events: events, Total: total, Limit: limit, Offset: filter.Offset}, nil
}

package service

import "errors"

var (
	ErrInvalidToken        = errors.New("invite token not found")
	ErrTokenExpired        = errors.New("invite token expired")
	ErrTokenRevoked        = errors.New("invite token revoked")
	ErrTokenAlreadyUsed    = errors.New("invite token already used")
	ErrTokenAlreadyRevoked = errors.New("invite token already revoked")
	ErrQuotaExceeded       = errors.New("insufficient invite quota")
	ErrParentNotFound      = errors.New("parent node not found")
	ErrParentDeleted       = errors.New("parent node is deleted")
	ErrNodeNotFound        = errors.New("node not found")
	ErrAlreadyPruned       = errors.New("node already pruned")
	ErrCannotPruneCore     = errors.New("cannot prune a core member")
	ErrRollbackNotAllowed  = errors.New("only completed prune operations can be rolled back")
	ErrPruneConflict       = errors.New("subtree changed during prune, retry")
	ErrOperationNotFound   = errors.New("prune operation not found")
	ErrInvalidStatus       = errors.New("invalid node status transition")
	ErrQuotaBelowUsed      = errors.New("quota cannot be set below current usage")

	// ErrIntegrityViolation signals structural corruption, e.g. an
	// ancestor walk exceeding the hop ceiling. Fatal to the operation,
	// not the process.
	ErrIntegrityViolation = errors.New("tree integrity violation")
)

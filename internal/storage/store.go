// Package storage persists validators, monitored targets and their ticks.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("record already exists")
	ErrInvalidTick = errors.New("invalid tick")
)

// ValidatorStore manages registered validators. Validators are never deleted.
type ValidatorStore interface {
	CreateValidator(ctx context.Context, v *models.Validator) error
	GetValidator(ctx context.Context, id string) (*models.Validator, error)
	FindValidatorByPublicKey(ctx context.Context, publicKey string) (*models.Validator, error)
	// FindOnlineValidator returns the most recently seen online validator,
	// restricted to address unless it is empty.
	FindOnlineValidator(ctx context.Context, address string) (*models.Validator, error)
	ListValidators(ctx context.Context) ([]models.Validator, error)
	MarkValidatorOnline(ctx context.Context, id, address string, at time.Time) error
	MarkValidatorOffline(ctx context.Context, id string, at time.Time) error
	TouchValidator(ctx context.Context, id string, at time.Time) error
	RecordValidation(ctx context.Context, id string, at time.Time) error
}

// TargetStore manages monitored URLs. URLs are unique.
type TargetStore interface {
	CreateTarget(ctx context.Context, t *models.Target) error
	GetTarget(ctx context.Context, id string) (*models.Target, error)
	ListTargets(ctx context.Context, accountID string) ([]models.Target, error)
	ListEnabledTargets(ctx context.Context) ([]models.Target, error)
	SetTargetStatus(ctx context.Context, id string, status constants.TickStatus, at time.Time) error
	DisableTarget(ctx context.Context, id string) error
}

// TickStore is the append-only tick log.
type TickStore interface {
	// AppendTick assigns the tick id, and the creation time when unset.
	AppendTick(ctx context.Context, t *models.Tick) error
	// RecentTicks returns up to limit ticks newest first. limit <= 0 returns all.
	RecentTicks(ctx context.Context, targetID string, limit int) ([]models.Tick, error)
	// TicksSince returns ticks created after since, newest first.
	TicksSince(ctx context.Context, targetID string, since time.Time) ([]models.Tick, error)
}

// Store is the full persistence boundary used by the hub.
type Store interface {
	ValidatorStore
	TargetStore
	TickStore
	Close() error
}

func validateTick(t *models.Tick) error {
	if t.TargetID == "" || t.ValidatorID == "" {
		return errors.Join(ErrInvalidTick, errors.New("missing target or validator"))
	}
	if !t.Status.Valid() {
		return errors.Join(ErrInvalidTick, errors.New("unknown status"))
	}
	if t.Latency < 0 {
		return errors.Join(ErrInvalidTick, errors.New("negative latency"))
	}
	return nil
}

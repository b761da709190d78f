package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/metrics"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/storage"
)

// ValidatorRef identifies the validator a direct check was credited to.
type ValidatorRef struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// CheckResult is the outcome of a direct probe.
type CheckResult struct {
	Status    constants.TickStatus `json:"status"`
	Message   string               `json:"message"`
	Tick      models.Tick          `json:"tick"`
	Validator ValidatorRef         `json:"validator"`
}

// DefaultValidator selects the validator credited with a direct probe from
// address: an online validator at address, else any online validator, else a
// new hub-side validator bound to address.
func (h *Hub) DefaultValidator(ctx context.Context, address string, forwarded bool) (*models.Validator, error) {
	if address != "" {
		v, err := h.store.FindOnlineValidator(ctx, address)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	v, err := h.store.FindOnlineValidator(ctx, "")
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	location := constants.LocationLocal
	if forwarded {
		location = constants.LocationRemote
	}
	now := h.now()
	v = &models.Validator{
		ID:        uuid.NewString(),
		PublicKey: "hub-" + uuid.NewString(),
		Address:   address,
		Location:  location,
		Version:   constants.ProtocolVersion,
		Status:    constants.ValidatorOnline,
		LastSeen:  now,
		CreatedAt: now,
	}
	if err := h.store.CreateValidator(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create default validator: %w", err)
	}
	h.logger.Info().Str("validator_id", v.ID).Str("address", address).Str("location", location).
		Msg("Created default validator")
	return v, nil
}

// CheckNow probes the target from the hub and records the tick. Probe
// failures are recorded as bad ticks; only lookup and store failures return
// an error. An empty accountID skips the ownership check.
func (h *Hub) CheckNow(ctx context.Context, accountID, targetID, callerAddress string, forwarded bool) (*CheckResult, error) {
	target, err := h.ownedTarget(ctx, accountID, targetID)
	if err != nil {
		return nil, err
	}

	v, err := h.DefaultValidator(ctx, callerAddress, forwarded)
	if err != nil {
		return nil, err
	}

	outcome := h.prober.Probe(ctx, target.URL)
	tick := &models.Tick{
		TargetID:    target.ID,
		ValidatorID: v.ID,
		Status:      outcome.Status,
		Latency:     outcome.Latency.Seconds(),
		Details:     outcome.Details,
		CreatedAt:   h.now(),
	}
	if err := h.recordTick(ctx, tick, metrics.SourceDirect); err != nil {
		return nil, fmt.Errorf("failed to record tick: %w", err)
	}

	h.logger.Info().
		Str("website_id", target.ID).
		Str("validator_id", v.ID).
		Str("status", string(outcome.Status)).
		Dur("latency", outcome.Latency).
		Msg("Direct check completed")

	return &CheckResult{
		Status:    outcome.Status,
		Message:   outcome.Details.Message,
		Tick:      *tick,
		Validator: ValidatorRef{ID: v.ID, Address: v.Address},
	}, nil
}

package hub

import (
	"context"
	"errors"
	"time"

	"github.com/jasonlvhit/gocron"

	"github.com/GauravPawar101/Validate-me/internal/models"
)

// hubAddress is the caller address used for direct probes the hub starts itself.
const hubAddress = "127.0.0.1"

func (h *Hub) startScheduler(ctx context.Context) {
	seconds := uint64(h.cfg.DispatchInterval / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	h.scheduler = gocron.NewScheduler()
	h.scheduler.Every(seconds).Seconds().Do(func() {
		h.Sweep(ctx)
	})
	h.cronCh = h.scheduler.Start()

	h.logger.Info().Uint64("interval_seconds", seconds).Bool("fallback_direct", h.cfg.FallbackDirect).
		Msg("Dispatch scheduler started")
}

// SweepResult counts what one dispatch sweep did.
type SweepResult struct {
	Dispatched int
	Direct     int
	Skipped    int
}

// Sweep dispatches a task for every enabled target that has none in flight.
// With no validator connected the target is probed directly when enabled.
func (h *Hub) Sweep(ctx context.Context) SweepResult {
	var result SweepResult

	targets, err := h.store.ListEnabledTargets(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list websites for dispatch")
		return result
	}

	for _, t := range targets {
		if h.inflightFor(t.ID) {
			result.Skipped++
			continue
		}

		err := h.Dispatch(ctx, t)
		if err == nil {
			result.Dispatched++
			continue
		}
		if !errors.Is(err, ErrNoValidator) || !h.cfg.FallbackDirect {
			result.Skipped++
			continue
		}
		if h.submitDirect(ctx, t) {
			result.Direct++
		} else {
			result.Skipped++
		}
	}

	h.logger.Debug().
		Int("dispatched", result.Dispatched).
		Int("direct", result.Direct).
		Int("skipped", result.Skipped).
		Msg("Dispatch sweep finished")
	return result
}

func (h *Hub) inflightFor(targetID string) bool {
	return h.inflight.Any(func(_ string, t *PendingTask) bool {
		return t.TargetID == targetID
	})
}

func (h *Hub) submitDirect(ctx context.Context, t models.Target) bool {
	if h.pool == nil {
		return false
	}
	return h.pool.TrySubmit(func() {
		if _, err := h.CheckNow(ctx, "", t.ID, hubAddress, false); err != nil {
			h.logger.Warn().Err(err).Str("website_id", t.ID).Msg("Direct check failed")
		}
	})
}

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/pkg/identity"
)

// LoadCollector samples host load for heartbeats.
type LoadCollector interface {
	Collect(ctx context.Context) *models.HostLoad
}

// HeartbeatService sends periodic liveness notices to the hub. It runs on
// its own goroutine so a slow probe never delays a heartbeat.
type HeartbeatService struct {
	Interval  time.Duration
	Identity  identity.ValidatorIdentityInterface
	Sender    Sender
	Collector LoadCollector
	Logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewHeartbeatService initializes a new HeartbeatService. collector may be nil.
func NewHeartbeatService(interval time.Duration, identity identity.ValidatorIdentityInterface,
	sender Sender, collector LoadCollector, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		Interval:  interval,
		Identity:  identity,
		Sender:    sender,
		Collector: collector,
		Logger:    logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())
	ctx := h.ctx

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop(ctx)
	}()

	h.Logger.Info().Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop sends a heartbeat every interval until ctx ends.
func (h *HeartbeatService) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.beat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *HeartbeatService) beat(ctx context.Context) {
	validatorID := h.Identity.GetValidatorID()
	if validatorID == "" {
		h.Logger.Debug().Msg("Skipping heartbeat until signup completes")
		return
	}

	msg := &protocol.Heartbeat{
		ValidatorID: validatorID,
		Timestamp:   time.Now(),
	}
	if h.Collector != nil {
		msg.Load = h.Collector.Collect(ctx)
	}

	if err := h.Sender.Send(msg); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to send heartbeat")
		return
	}
	h.Logger.Debug().Str("validator_id", validatorID).Msg("Heartbeat sent")
}

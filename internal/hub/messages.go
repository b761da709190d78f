package hub

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/metrics"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/internal/storage"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

// handle dispatches one message. It reports false when the session should end.
func (h *Hub) handle(ctx context.Context, s *session, msg protocol.Message) bool {
	if req, ok := msg.(*protocol.SignupRequest); ok {
		h.handleSignup(ctx, s, req)
		return true
	}

	if s.id() == "" {
		h.violation(s, "not_signed_up", nil)
		return true
	}

	switch m := msg.(type) {
	case *protocol.ValidateResult:
		h.handleResult(ctx, s, m)
	case *protocol.Heartbeat:
		if m.ValidatorID != s.id() {
			h.violation(s, "validator_mismatch", nil)
			return true
		}
		s.setLoad(m.Load)
		h.touch(ctx, s)
	case *protocol.Pong:
		h.touch(ctx, s)
	case *protocol.Shutdown:
		h.logger.Info().Str("validator_id", s.id()).Str("reason", m.Reason).Msg("Validator shutting down")
		return false
	case *protocol.Unknown:
		h.logger.Warn().Str("type", string(m.Kind)).Str("validator_id", s.id()).Msg("Ignoring message of unknown type")
	default:
		h.violation(s, "unexpected_type", nil)
	}
	return true
}

func (h *Hub) violation(s *session, reason string, err error) {
	h.metrics.ProtocolViolation(reason)
	event := h.logger.Warn().Str("reason", reason).Str("remote", s.remote)
	if id := s.id(); id != "" {
		event = event.Str("validator_id", id)
	}
	if err != nil {
		event = event.Err(err)
	}
	event.Msg("Protocol violation, message dropped")
}

func (h *Hub) touch(ctx context.Context, s *session) {
	if err := h.store.TouchValidator(ctx, s.id(), h.now()); err != nil {
		h.logger.Error().Err(err).Str("validator_id", s.id()).Msg("Failed to update last seen")
	}
}

func (h *Hub) handleSignup(ctx context.Context, s *session, req *protocol.SignupRequest) {
	pub, err := signer.ParsePublicKey(req.PublicKey)
	if err != nil {
		h.metrics.Signup("rejected")
		h.violation(s, "invalid_public_key", err)
		return
	}
	if !signer.Verify(pub, protocol.SignupPayload(req.CorrelationID, req.PublicKey), req.Signature) {
		h.metrics.Signup("rejected")
		h.violation(s, "bad_signature", nil)
		return
	}

	version, err := semver.NewVersion(req.ProtocolVersion)
	if err != nil || !h.constraint.Check(version) {
		h.metrics.Signup("unsupported_version")
		h.logger.Warn().
			Str("protocol_version", req.ProtocolVersion).
			Str("constraint", h.cfg.ProtocolConstraint).
			Str("remote", s.remote).
			Msg("Rejecting signup with unsupported protocol version")
		return
	}

	address := req.AddressHint
	if address == "" {
		address = hostOf(s.remote)
	}

	v, err := h.registerValidator(ctx, req, address)
	if err != nil {
		h.metrics.Signup("error")
		h.logger.Error().Err(err).Str("public_key", req.PublicKey).Msg("Failed to register validator")
		return
	}

	if previous, ok := h.sessions.Get(v.ID); ok && previous != s {
		h.logger.Info().Str("validator_id", v.ID).Msg("Replacing existing validator session")
		h.sessions.Remove(v.ID)
		previous.close()
		h.abandonValidatorTasks(ctx, v.ID, "replaced")
	}
	s.bind(v.ID, pub, address, req.Capabilities)
	h.sessions.Set(v.ID, s)
	h.metrics.SetValidatorsConnected(h.sessions.Count())

	if err := s.send(&protocol.SignupAck{CorrelationID: req.CorrelationID, ValidatorID: v.ID}); err != nil {
		h.logger.Warn().Err(err).Str("validator_id", v.ID).Msg("Failed to acknowledge signup")
		return
	}
	h.metrics.Signup("accepted")
	h.logger.Info().
		Str("validator_id", v.ID).
		Str("address", address).
		Str("protocol_version", req.ProtocolVersion).
		Msg("Validator signed up")
}

// registerValidator reuses the record for the public key or creates one.
func (h *Hub) registerValidator(ctx context.Context, req *protocol.SignupRequest, address string) (*models.Validator, error) {
	now := h.now()

	v, err := h.store.FindValidatorByPublicKey(ctx, req.PublicKey)
	if err == nil {
		if err := h.store.MarkValidatorOnline(ctx, v.ID, address, now); err != nil {
			return nil, err
		}
		return v, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	v = &models.Validator{
		ID:           uuid.NewString(),
		PublicKey:    req.PublicKey,
		Address:      address,
		Location:     constants.LocationRemote,
		Version:      req.ProtocolVersion,
		Capabilities: req.Capabilities,
		Status:       constants.ValidatorOnline,
		LastSeen:     now,
		CreatedAt:    now,
	}
	err = h.store.CreateValidator(ctx, v)
	if errors.Is(err, storage.ErrConflict) {
		// registered concurrently under the same key
		return h.store.FindValidatorByPublicKey(ctx, req.PublicKey)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (h *Hub) handleResult(ctx context.Context, s *session, res *protocol.ValidateResult) {
	validatorID := s.id()

	task, ok := h.inflight.Peek(res.CorrelationID)
	if !ok {
		h.logger.Debug().Str("correlation_id", res.CorrelationID).Str("validator_id", validatorID).
			Msg("Ignoring result for unknown or completed task")
		h.metrics.ProtocolViolation("stale_result")
		return
	}
	if task.ValidatorID != validatorID || (res.ValidatorID != "" && res.ValidatorID != validatorID) {
		h.violation(s, "validator_mismatch", nil)
		return
	}

	valid := res.Status.Valid() && res.Latency >= 0 &&
		signer.Verify(s.key(), protocol.AttestationPayload(res.CorrelationID, task.TargetID, res.Status, res.Latency), res.Signature)
	if !valid {
		if task, ok = h.inflight.Take(res.CorrelationID); ok {
			s.inflight.Dec()
			h.metrics.SetInflightTasks(h.inflight.Len())
			h.violation(s, "bad_signature", nil)
			h.redispatch(ctx, task, validatorID)
		}
		return
	}

	if task, ok = h.inflight.Take(res.CorrelationID); !ok {
		return
	}
	s.inflight.Dec()
	h.metrics.SetInflightTasks(h.inflight.Len())

	tick := &models.Tick{
		TargetID:    task.TargetID,
		ValidatorID: validatorID,
		Status:      res.Status,
		Latency:     float64(res.Latency) / 1000,
		Details:     res.Details,
		CreatedAt:   h.now(),
	}
	if err := h.recordTick(ctx, tick, metrics.SourceValidator); err != nil {
		h.logger.Error().Err(err).Str("correlation_id", res.CorrelationID).Msg("Failed to record tick")
		return
	}

	h.logger.Info().
		Str("validator_id", validatorID).
		Str("website_id", task.TargetID).
		Str("status", string(res.Status)).
		Int64("latency_ms", res.Latency).
		Msg("Validation result recorded")

	if h.cfg.RewardPerValidation > 0 {
		reward := &protocol.Reward{Amount: h.cfg.RewardPerValidation, TargetID: task.TargetID}
		if err := s.send(reward); err != nil {
			h.logger.Warn().Err(err).Str("validator_id", validatorID).Msg("Failed to send reward notice")
		}
	}
}

// recordTick appends tick and updates the target and validator it refers to.
func (h *Hub) recordTick(ctx context.Context, tick *models.Tick, source string) error {
	if err := h.store.AppendTick(ctx, tick); err != nil {
		return err
	}
	if err := h.store.SetTargetStatus(ctx, tick.TargetID, tick.Status, tick.CreatedAt); err != nil {
		h.logger.Warn().Err(err).Str("website_id", tick.TargetID).Msg("Failed to update website status")
	}
	if err := h.store.RecordValidation(ctx, tick.ValidatorID, tick.CreatedAt); err != nil {
		h.logger.Warn().Err(err).Str("validator_id", tick.ValidatorID).Msg("Failed to update validator counters")
	}
	h.metrics.ObserveTick(string(tick.Status), source, tick.Latency)

	if h.publisher != nil {
		published := *tick
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if err := h.publisher.PublishTick(published); err != nil {
				h.logger.Warn().Err(err).Str("website_id", published.TargetID).Msg("Failed to publish tick")
			}
		}()
	}
	return nil
}

func (h *Hub) pingAll(context.Context) {
	ping := &protocol.Ping{Timestamp: time.Now()}
	for item := range h.sessions.IterBuffered() {
		if err := item.Val.send(ping); err != nil {
			h.logger.Debug().Err(err).Str("validator_id", item.Key).Msg("Ping failed")
		}
	}
}

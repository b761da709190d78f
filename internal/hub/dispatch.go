package hub

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
)

// PendingTask is a validation request awaiting its result.
type PendingTask struct {
	CorrelationID string
	TargetID      string
	URL           string
	ValidatorID   string
	Attempt       int
	Tried         []string
	SentAt        time.Time
}

func (t *PendingTask) tried(validatorID string) bool {
	for _, id := range t.Tried {
		if id == validatorID {
			return true
		}
	}
	return false
}

// Dispatch sends a validation task for target to a connected validator.
func (h *Hub) Dispatch(ctx context.Context, target models.Target) error {
	return h.dispatchTask(ctx, &PendingTask{
		TargetID: target.ID,
		URL:      target.URL,
		Attempt:  1,
	})
}

// dispatchTask picks the least busy eligible validator and sends it the
// task under a fresh correlation id, moving on to the next one if a send fails.
// On success task reflects the registered copy.
func (h *Hub) dispatchTask(ctx context.Context, task *PendingTask) error {
	scheme := ""
	if u, err := url.Parse(task.URL); err == nil {
		scheme = u.Scheme
	}

	for {
		s := h.pickSession(task, scheme)
		if s == nil {
			return ErrNoValidator
		}
		validatorID := s.id()

		sent := *task
		sent.CorrelationID = uuid.NewString()
		sent.ValidatorID = validatorID
		sent.Tried = append(append([]string(nil), task.Tried...), validatorID)
		sent.SentAt = h.now()
		task.Tried = sent.Tried
		if err := h.inflight.Register(sent.CorrelationID, &sent); err != nil {
			return err
		}
		s.inflight.Inc()

		req := &protocol.ValidateRequest{CorrelationID: sent.CorrelationID, URL: sent.URL, TargetID: sent.TargetID}
		if err := s.send(req); err != nil {
			h.inflight.Take(sent.CorrelationID)
			s.inflight.Dec()
			h.logger.Warn().Err(err).Str("validator_id", validatorID).Msg("Failed to send validation task")
			continue
		}
		*task = sent

		h.metrics.TaskDispatched()
		h.metrics.SetInflightTasks(h.inflight.Len())
		h.logger.Debug().
			Str("correlation_id", task.CorrelationID).
			Str("validator_id", validatorID).
			Str("website_id", task.TargetID).
			Int("attempt", task.Attempt).
			Msg("Validation task dispatched")
		return nil
	}
}

func (h *Hub) pickSession(task *PendingTask, scheme string) *session {
	var best *session
	var bestLoad int32
	for item := range h.sessions.IterBuffered() {
		s := item.Val
		if s.closed.Load() || task.tried(item.Key) || (scheme != "" && !s.supports(scheme)) {
			continue
		}
		if load := s.inflight.Load(); best == nil || load < bestLoad {
			best, bestLoad = s, load
		}
	}
	return best
}

// redispatch retries an abandoned task on a validator that has not seen it yet.
func (h *Hub) redispatch(ctx context.Context, task *PendingTask, failedValidator string) {
	logger := h.logger.With().Str("website_id", task.TargetID).Str("failed_validator", failedValidator).Logger()

	if task.Attempt >= h.cfg.MaxAttempts {
		h.metrics.TaskAbandoned("max_attempts")
		logger.Warn().Int("attempts", task.Attempt).Msg("Giving up on validation task")
		return
	}

	next := &PendingTask{
		TargetID: task.TargetID,
		URL:      task.URL,
		Attempt:  task.Attempt + 1,
		Tried:    append([]string(nil), task.Tried...),
	}
	if err := h.dispatchTask(ctx, next); err != nil {
		if errors.Is(err, ErrNoValidator) {
			h.metrics.TaskAbandoned("no_validator")
		}
		logger.Warn().Err(err).Msg("Failed to redispatch validation task")
		return
	}
	logger.Info().Str("validator_id", next.ValidatorID).Int("attempt", next.Attempt).Msg("Validation task redispatched")
}

// abandonValidatorTasks redispatches every task assigned to validatorID.
func (h *Hub) abandonValidatorTasks(ctx context.Context, validatorID, reason string) {
	tasks := h.inflight.TakeIf(func(_ string, t *PendingTask) bool {
		return t.ValidatorID == validatorID
	})
	for _, task := range tasks {
		h.metrics.TaskAbandoned(reason)
		h.redispatch(ctx, task, validatorID)
	}
	h.metrics.SetInflightTasks(h.inflight.Len())
}

// SweepExpired abandons tasks older than the task timeout and redispatches
// them. It returns the number of expired tasks.
func (h *Hub) SweepExpired(ctx context.Context) int {
	now := h.now()
	expired := h.inflight.TakeIf(func(_ string, t *PendingTask) bool {
		return now.Sub(t.SentAt) >= h.cfg.TaskTimeout
	})
	for _, task := range expired {
		if s, ok := h.sessions.Get(task.ValidatorID); ok {
			s.inflight.Dec()
		}
		h.metrics.TaskAbandoned("timeout")
		h.logger.Warn().
			Str("correlation_id", task.CorrelationID).
			Str("validator_id", task.ValidatorID).
			Dur("age", now.Sub(task.SentAt)).
			Msg("Validation task timed out")
		h.redispatch(ctx, task, task.ValidatorID)
	}
	if len(expired) > 0 {
		h.metrics.SetInflightTasks(h.inflight.Len())
	}
	return len(expired)
}

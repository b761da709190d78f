package mqtt_middleware

import (
	"time"

	"github.com/rs/zerolog"
)

// RetryMiddleware retries failed publishes with a doubling delay.
type RetryMiddleware struct {
	next      MQTTMiddleware
	retries   int
	baseDelay time.Duration
	logger    zerolog.Logger
}

// NewRetryMiddleware creates a RetryMiddleware making up to retries extra attempts.
func NewRetryMiddleware(retries int, baseDelay time.Duration, logger zerolog.Logger) *RetryMiddleware {
	if retries < 0 {
		retries = 0
	}
	return &RetryMiddleware{
		retries:   retries,
		baseDelay: baseDelay,
		logger:    logger,
	}
}

func (m *RetryMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

func (m *RetryMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	delay := m.baseDelay
	var err error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if err = m.next.Publish(topic, qos, retained, payload); err == nil {
			return nil
		}
		if attempt == m.retries {
			break
		}
		m.logger.Warn().Err(err).Str("topic", topic).Int("attempt", attempt+1).Dur("delay", delay).Msg("Publish failed, retrying")
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

package mqtt_middleware

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// Envelope is the wire form of every published event.
type Envelope struct {
	Source      string          `json:"source"`
	Sequence    int64           `json:"sequence"`
	PublishedAt time.Time       `json:"publishedAt"`
	Payload     json.RawMessage `json:"payload"`
}

// EnvelopeMiddleware wraps payloads in an Envelope stamped with the source
// name and a per-process sequence number.
type EnvelopeMiddleware struct {
	next     MQTTMiddleware
	source   string
	sequence *atomic.Int64
	now      func() time.Time
}

// NewEnvelopeMiddleware creates an EnvelopeMiddleware for source.
func NewEnvelopeMiddleware(source string) *EnvelopeMiddleware {
	return &EnvelopeMiddleware{
		source:   source,
		sequence: atomic.NewInt64(0),
		now:      time.Now,
	}
}

func (m *EnvelopeMiddleware) SetNext(next MQTTMiddleware) {
	m.next = next
}

func (m *EnvelopeMiddleware) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	var raw json.RawMessage
	switch p := payload.(type) {
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to serialize payload: %w", err)
		}
		raw = data
	}

	data, err := json.Marshal(Envelope{
		Source:      m.source,
		Sequence:    m.sequence.Inc(),
		PublishedAt: m.now().UTC(),
		Payload:     raw,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}
	return m.next.Publish(topic, qos, retained, data)
}

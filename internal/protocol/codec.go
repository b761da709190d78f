package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that are not a valid envelope.
var ErrMalformed = errors.New("malformed message")

type envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

var fromHub = map[MessageType]func() Message{
	TypeSignup:   func() Message { return &SignupAck{} },
	TypeValidate: func() Message { return &ValidateRequest{} },
	TypePing:     func() Message { return &Ping{} },
	TypeReward:   func() Message { return &Reward{} },
}

var fromValidator = map[MessageType]func() Message{
	TypeSignup:    func() Message { return &SignupRequest{} },
	TypeValidate:  func() Message { return &ValidateResult{} },
	TypeHeartbeat: func() Message { return &Heartbeat{} },
	TypePong:      func() Message { return &Pong{} },
	TypeShutdown:  func() Message { return &Shutdown{} },
}

// Encode wraps m in a {type, data} envelope.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", m.Type(), err)
	}
	return json.Marshal(envelope{Type: m.Type(), Data: data})
}

// DecodeFromHub decodes a frame received by a validator.
func DecodeFromHub(raw []byte) (Message, error) {
	return decode(raw, fromHub)
}

// DecodeFromValidator decodes a frame received by the hub.
func DecodeFromValidator(raw []byte) (Message, error) {
	return decode(raw, fromValidator)
}

func decode(raw []byte, registry map[MessageType]func() Message) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	factory, ok := registry[env.Type]
	if !ok {
		return &Unknown{Kind: env.Type, Raw: env.Data}, nil
	}

	msg := factory()
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return msg, nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

package protocol

import (
	"encoding/json"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

// MessageType is the discriminator of the wire envelope.
type MessageType string

const (
	TypeSignup    MessageType = "signup"
	TypeValidate  MessageType = "validate"
	TypeHeartbeat MessageType = "heartbeat"
	TypePing      MessageType = "ping"
	TypePong      MessageType = "pong"
	TypeReward    MessageType = "reward"
	TypeShutdown  MessageType = "shutdown"
)

// Message is implemented by every payload that can travel in an envelope.
type Message interface {
	Type() MessageType
}

// SignupRequest is sent by a validator right after connecting.
type SignupRequest struct {
	CorrelationID   string           `json:"correlationId"`
	AddressHint     string           `json:"addressHint"`
	PublicKey       string           `json:"publicKey"`
	Signature       signer.Signature `json:"signature"`
	ProtocolVersion string           `json:"protocolVersion"`
	Capabilities    []string         `json:"capabilities,omitempty"`
}

func (*SignupRequest) Type() MessageType { return TypeSignup }

// SignupAck is the hub's reply to an accepted signup.
type SignupAck struct {
	CorrelationID string `json:"correlationId"`
	ValidatorID   string `json:"validatorId"`
}

func (*SignupAck) Type() MessageType { return TypeSignup }

// ValidateRequest asks a validator to probe a URL.
type ValidateRequest struct {
	CorrelationID string `json:"correlationId"`
	URL           string `json:"url"`
	TargetID      string `json:"targetId"`
}

func (*ValidateRequest) Type() MessageType { return TypeValidate }

// ValidateResult is a validator's signed probe outcome. Latency is in milliseconds.
type ValidateResult struct {
	CorrelationID string               `json:"correlationId"`
	ValidatorID   string               `json:"validatorId"`
	TargetID      string               `json:"targetId"`
	Status        constants.TickStatus `json:"status"`
	Latency       int64                `json:"latency"`
	Details       models.TickDetails   `json:"details"`
	Signature     signer.Signature     `json:"signature"`
	Timestamp     time.Time            `json:"timestamp"`
}

func (*ValidateResult) Type() MessageType { return TypeValidate }

// Heartbeat is a periodic liveness notice. No reply is expected.
type Heartbeat struct {
	ValidatorID string           `json:"validatorId"`
	Timestamp   time.Time        `json:"timestamp"`
	Load        *models.HostLoad `json:"load,omitempty"`
}

func (*Heartbeat) Type() MessageType { return TypeHeartbeat }

type Ping struct {
	Timestamp time.Time `json:"timestamp"`
}

func (*Ping) Type() MessageType { return TypePing }

type Pong struct {
	ValidatorID string    `json:"validatorId"`
	Timestamp   time.Time `json:"timestamp"`
}

func (*Pong) Type() MessageType { return TypePong }

// Reward notifies a validator that an accepted result earned a payout.
type Reward struct {
	Amount      float64 `json:"amount"`
	TxSignature string  `json:"txSignature,omitempty"`
	TargetID    string  `json:"targetId,omitempty"`
}

func (*Reward) Type() MessageType { return TypeReward }

// Shutdown announces that a validator is leaving.
type Shutdown struct {
	ValidatorID string `json:"validatorId"`
	Reason      string `json:"reason"`
}

func (*Shutdown) Type() MessageType { return TypeShutdown }

// Unknown holds a message whose type is not understood by the receiver.
type Unknown struct {
	Kind MessageType
	Raw  json.RawMessage
}

func (u *Unknown) Type() MessageType { return u.Kind }

func (u *Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

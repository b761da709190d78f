package constants

import "time"

// TickStatus is the outcome of a single probe.
type TickStatus string

const (
	StatusGood TickStatus = "good"
	StatusBad  TickStatus = "bad"
)

// Valid reports whether s is one of the known outcomes.
func (s TickStatus) Valid() bool {
	return s == StatusGood || s == StatusBad
}

// ValidatorStatus is the liveness state of a registered validator.
type ValidatorStatus string

const (
	ValidatorOnline  ValidatorStatus = "online"
	ValidatorOffline ValidatorStatus = "offline"
)

// Validator location relative to the hub.
const (
	LocationLocal  = "local"
	LocationRemote = "remote"
)

const (
	ProtocolVersion           = "1.0.0"
	DefaultProtocolConstraint = ">= 1.0.0, < 2.0.0"

	DefaultFetchTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultCooldownWindow    = 60 * time.Second

	ReconnectBaseDelay = 1000 * time.Millisecond
	ReconnectMaxDelay  = 30000 * time.Millisecond

	DefaultTaskTimeout     = 30 * time.Second
	DefaultMaxTaskAttempts = 3
)

// DefaultCapabilities is advertised by validators at signup.
var DefaultCapabilities = []string{"http", "https", "dns"}

// Classification policies for HTTP response codes.
const (
	PolicyAny2xx    = "2xx"
	PolicyStrict200 = "strict200"
)

// Error codes attached to failed probes.
const (
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeDNS               = "DNS_ERROR"
	ErrCodeConnectionRefused = "CONNECTION_REFUSED"
	ErrCodeConnectionReset   = "CONNECTION_RESET"
	ErrCodeTLS               = "TLS_ERROR"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeUnknown           = "UNKNOWN_ERROR"
)

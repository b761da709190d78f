package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/correlation"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/pkg/identity"
)

// Callback continues a request once the hub's correlated reply arrives.
type Callback func(msg protocol.Message)

// AgentConfig holds the validator agent's settings.
type AgentConfig struct {
	HubURL            string
	AddressHint       string
	Capabilities      []string
	Version           string
	HeartbeatInterval time.Duration
	ShutdownTimeout   time.Duration
}

// ValidatorAgent is the probe agent side of the hub protocol: it signs up
// on every connection, answers validation tasks with signed outcomes and
// keeps the hub informed through heartbeats.
type ValidatorAgent struct {
	config    AgentConfig
	identity  identity.ValidatorIdentityInterface
	prober    *probe.Prober
	cooldown  *Cooldown
	callbacks *correlation.Registry[Callback]
	heartbeat *HeartbeatService
	conn      *ConnectionManager
	logger    zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewValidatorAgent wires an agent. collector may be nil.
func NewValidatorAgent(config AgentConfig, id identity.ValidatorIdentityInterface, prober *probe.Prober,
	cooldown *Cooldown, collector LoadCollector, dial DialFunc, logger zerolog.Logger) *ValidatorAgent {

	if config.Version == "" {
		config.Version = constants.ProtocolVersion
	}
	if len(config.Capabilities) == 0 {
		config.Capabilities = constants.DefaultCapabilities
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	a := &ValidatorAgent{
		config:    config,
		identity:  id,
		prober:    prober,
		cooldown:  cooldown,
		callbacks: correlation.NewRegistry[Callback](),
		logger:    logger.With().Str("component", "validator").Logger(),
	}
	a.conn = NewConnectionManager(config.HubURL, dial, a, logger.With().Str("component", "connection").Logger())
	a.heartbeat = NewHeartbeatService(config.HeartbeatInterval, id, a.conn, collector,
		logger.With().Str("component", "heartbeat").Logger())
	return a
}

// Connection exposes the underlying connection manager.
func (a *ValidatorAgent) Connection() *ConnectionManager {
	return a.conn
}

// PendingCallbacks returns the number of requests still awaiting a reply.
func (a *ValidatorAgent) PendingCallbacks() int {
	return a.callbacks.Len()
}

// Start opens the connection to the hub.
func (a *ValidatorAgent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return errors.New("validator agent is already running")
	}
	if err := a.conn.Open(); err != nil {
		return fmt.Errorf("failed to open hub connection: %w", err)
	}
	a.running = true
	return nil
}

// Stop announces the shutdown to the hub and closes the connection.
func (a *ValidatorAgent) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return errors.New("validator agent is not running")
	}
	a.running = false

	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()

	var farewell protocol.Message
	if id := a.identity.GetValidatorID(); id != "" {
		farewell = &protocol.Shutdown{ValidatorID: id, Reason: "graceful_exit"}
	}
	return a.conn.CloseAndDrain(ctx, farewell)
}

// OnConnected signs up with the hub and starts heartbeats.
func (a *ValidatorAgent) OnConnected(_ context.Context, s Sender) error {
	if err := a.signup(s); err != nil {
		return err
	}
	if err := a.heartbeat.Start(); err != nil {
		a.logger.Warn().Err(err).Msg("Heartbeat not started")
	}
	return nil
}

// OnDisconnected stops heartbeats until the next connection.
func (a *ValidatorAgent) OnDisconnected() {
	_ = a.heartbeat.Stop()
}

// HandleMessage dispatches one message from the hub.
func (a *ValidatorAgent) HandleMessage(ctx context.Context, s Sender, msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.SignupAck:
		a.resolve(m.CorrelationID, m)
	case *protocol.ValidateRequest:
		a.handleValidate(ctx, s, m)
	case *protocol.Ping:
		pong := &protocol.Pong{ValidatorID: a.identity.GetValidatorID(), Timestamp: time.Now()}
		if err := s.Send(pong); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to answer ping")
		}
	case *protocol.Reward:
		a.logger.Info().
			Float64("amount", m.Amount).
			Str("tx_signature", m.TxSignature).
			Str("website_id", m.TargetID).
			Msg("Reward received")
	case *protocol.Unknown:
		a.logger.Warn().Str("type", string(m.Kind)).Msg("Ignoring message of unknown type")
	default:
		a.logger.Warn().Str("type", string(msg.Type())).Msg("Ignoring unexpected message")
	}
}

func (a *ValidatorAgent) resolve(correlationID string, msg protocol.Message) {
	cb, ok := a.callbacks.Take(correlationID)
	if !ok {
		a.logger.Debug().Str("correlation_id", correlationID).Msg("No pending callback, dropping reply")
		return
	}
	cb(msg)
}

func (a *ValidatorAgent) signup(s Sender) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate correlation id: %w", err)
	}
	correlationID := id.String()
	publicKey := a.identity.PublicKey().String()

	sig, err := a.identity.Sign(protocol.SignupPayload(correlationID, publicKey))
	if err != nil {
		return fmt.Errorf("failed to sign signup message: %w", err)
	}

	err = a.callbacks.Register(correlationID, func(msg protocol.Message) {
		ack, ok := msg.(*protocol.SignupAck)
		if !ok || ack.ValidatorID == "" {
			a.logger.Error().Msg("Invalid signup response")
			return
		}
		if err := a.identity.SaveValidatorID(ack.ValidatorID); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to persist validator id")
		}
		a.logger.Info().Str("validator_id", ack.ValidatorID).Msg("Signed up with hub")
	})
	if err != nil {
		return fmt.Errorf("failed to register signup callback: %w", err)
	}

	req := &protocol.SignupRequest{
		CorrelationID:   correlationID,
		AddressHint:     a.config.AddressHint,
		PublicKey:       publicKey,
		Signature:       sig,
		ProtocolVersion: a.config.Version,
		Capabilities:    a.config.Capabilities,
	}
	if err := s.Send(req); err != nil {
		a.callbacks.Take(correlationID)
		return fmt.Errorf("failed to send signup: %w", err)
	}

	a.logger.Info().Str("correlation_id", correlationID).Str("public_key", publicKey).Msg("Signup sent")
	return nil
}

func (a *ValidatorAgent) handleValidate(ctx context.Context, s Sender, req *protocol.ValidateRequest) {
	if req.CorrelationID == "" || req.URL == "" {
		a.logger.Warn().Msg("Dropping validation request without correlation id or url")
		return
	}
	logger := a.logger.With().Str("correlation_id", req.CorrelationID).Str("url", req.URL).Logger()

	outcome, cached := a.cooldown.Lookup(req.URL)
	if cached {
		outcome.Details.Cached = true
		logger.Debug().Msg("Reusing outcome inside cool-down window")
	} else {
		outcome = a.prober.Probe(ctx, req.URL)
		a.cooldown.Record(req.URL, outcome)
	}

	latency := outcome.LatencyMillis()
	sig, err := a.identity.Sign(protocol.AttestationPayload(req.CorrelationID, req.TargetID, outcome.Status, latency))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to sign validation result")
		return
	}

	details := outcome.Details
	details.ValidatorIP = a.config.AddressHint

	res := &protocol.ValidateResult{
		CorrelationID: req.CorrelationID,
		ValidatorID:   a.identity.GetValidatorID(),
		TargetID:      req.TargetID,
		Status:        outcome.Status,
		Latency:       latency,
		Details:       details,
		Signature:     sig,
		Timestamp:     time.Now(),
	}
	if err := s.Send(res); err != nil {
		logger.Error().Err(err).Msg("Failed to send validation result")
		return
	}

	logger.Info().Str("status", string(outcome.Status)).Int64("latency_ms", latency).Bool("cached", cached).Msg("Validation completed")
}

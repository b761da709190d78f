package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/mocks"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/pkg/fetch"
	"github.com/GauravPawar101/Validate-me/pkg/identity"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

func newTestAgent(t *testing.T, fetcher fetch.Fetcher) (*ValidatorAgent, *identity.ValidatorIdentity) {
	t.Helper()
	id := newTestIdentity(t)
	agent := NewValidatorAgent(
		AgentConfig{HubURL: "ws://hub.invalid/ws", AddressHint: "203.0.113.7", HeartbeatInterval: time.Hour},
		id,
		probe.NewProber(fetcher, time.Second, ""),
		NewCooldown(time.Minute, zerolog.Nop()),
		nil,
		nil,
		zerolog.Nop(),
	)
	return agent, id
}

// TestValidatorAgent_Signup tests the signed signup and the handling of its acknowledgement.
func TestValidatorAgent_Signup(t *testing.T) {
	agent, id := newTestAgent(t, new(mocks.MockFetcher))
	sender := &recordingSender{}

	require.NoError(t, agent.OnConnected(context.Background(), sender))
	defer agent.OnDisconnected()

	require.Len(t, sender.messages(), 1)
	req, ok := sender.messages()[0].(*protocol.SignupRequest)
	require.True(t, ok)
	assert.NotEmpty(t, req.CorrelationID)
	assert.Equal(t, id.PublicKey().String(), req.PublicKey)
	assert.Equal(t, "203.0.113.7", req.AddressHint)
	assert.Equal(t, constants.ProtocolVersion, req.ProtocolVersion)
	assert.True(t, signer.Verify(id.PublicKey(), protocol.SignupPayload(req.CorrelationID, req.PublicKey), req.Signature))
	assert.Equal(t, 1, agent.PendingCallbacks())

	agent.HandleMessage(context.Background(), sender, &protocol.SignupAck{CorrelationID: req.CorrelationID, ValidatorID: "v-1"})
	assert.Equal(t, "v-1", id.GetValidatorID())
	assert.Equal(t, 0, agent.PendingCallbacks())

	// a repeated acknowledgement finds no callback and changes nothing
	agent.HandleMessage(context.Background(), sender, &protocol.SignupAck{CorrelationID: req.CorrelationID, ValidatorID: "v-2"})
	assert.Equal(t, "v-1", id.GetValidatorID())
}

// TestValidatorAgent_SignupSendFailure tests that a failed send leaves no pending callback.
func TestValidatorAgent_SignupSendFailure(t *testing.T) {
	agent, _ := newTestAgent(t, new(mocks.MockFetcher))
	err := agent.OnConnected(context.Background(), &recordingSender{err: ErrNotConnected})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 0, agent.PendingCallbacks())
}

// TestValidatorAgent_Validate tests a signed result and reuse of the outcome inside the cool-down window.
func TestValidatorAgent_Validate(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com", time.Second).
		Return(&fetch.Response{StatusCode: http.StatusOK}, nil).Once()

	agent, id := newTestAgent(t, fetcher)
	require.NoError(t, id.SaveValidatorID("v-1"))
	sender := &recordingSender{}

	agent.HandleMessage(context.Background(), sender, &protocol.ValidateRequest{CorrelationID: "cb-1", URL: "https://example.com", TargetID: "site-1"})
	agent.HandleMessage(context.Background(), sender, &protocol.ValidateRequest{CorrelationID: "cb-2", URL: "https://example.com", TargetID: "site-1"})

	msgs := sender.messages()
	require.Len(t, msgs, 2)

	first := msgs[0].(*protocol.ValidateResult)
	assert.Equal(t, "cb-1", first.CorrelationID)
	assert.Equal(t, "v-1", first.ValidatorID)
	assert.Equal(t, "site-1", first.TargetID)
	assert.Equal(t, constants.StatusGood, first.Status)
	assert.Equal(t, "203.0.113.7", first.Details.ValidatorIP)
	assert.False(t, first.Details.Cached)
	assert.True(t, signer.Verify(id.PublicKey(),
		protocol.AttestationPayload("cb-1", "site-1", first.Status, first.Latency), first.Signature))

	second := msgs[1].(*protocol.ValidateResult)
	assert.Equal(t, "cb-2", second.CorrelationID)
	assert.True(t, second.Details.Cached)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, signer.Verify(id.PublicKey(),
		protocol.AttestationPayload("cb-2", "site-1", second.Status, second.Latency), second.Signature))

	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

// TestValidatorAgent_ValidateFailure tests that a transport error is reported as a bad result with zero latency.
func TestValidatorAgent_ValidateFailure(t *testing.T) {
	fetcher := new(mocks.MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://down.example.com", time.Second).
		Return(nil, context.DeadlineExceeded)

	agent, _ := newTestAgent(t, fetcher)
	sender := &recordingSender{}
	agent.HandleMessage(context.Background(), sender, &protocol.ValidateRequest{CorrelationID: "cb-1", URL: "https://down.example.com", TargetID: "site-2"})

	require.Len(t, sender.messages(), 1)
	res := sender.messages()[0].(*protocol.ValidateResult)
	assert.Equal(t, constants.StatusBad, res.Status)
	assert.Equal(t, int64(0), res.Latency)
	assert.Equal(t, constants.ErrCodeTimeout, res.Details.Code)
	assert.Equal(t, "Request timed out", res.Details.Error)
}

// TestValidatorAgent_PingAndUnknown tests the ping reply and that unknown messages are ignored.
func TestValidatorAgent_PingAndUnknown(t *testing.T) {
	agent, id := newTestAgent(t, new(mocks.MockFetcher))
	require.NoError(t, id.SaveValidatorID("v-1"))
	sender := &recordingSender{}

	agent.HandleMessage(context.Background(), sender, &protocol.Ping{Timestamp: time.Now()})
	agent.HandleMessage(context.Background(), sender, &protocol.Unknown{Kind: "telemetry"})
	agent.HandleMessage(context.Background(), sender, &protocol.Reward{Amount: 0.001})
	agent.HandleMessage(context.Background(), sender, &protocol.ValidateRequest{CorrelationID: "", URL: "https://example.com"})

	require.Len(t, sender.messages(), 1)
	pong, ok := sender.messages()[0].(*protocol.Pong)
	require.True(t, ok)
	assert.Equal(t, "v-1", pong.ValidatorID)
}

// TestValidatorAgent_StartStop tests the lifecycle against an unreachable hub.
func TestValidatorAgent_StartStop(t *testing.T) {
	id := newTestIdentity(t)
	dial := func(context.Context, string) (Conn, error) { return nil, errors.New("connection refused") }
	agent := NewValidatorAgent(AgentConfig{HubURL: "ws://hub.invalid/ws"}, id,
		probe.NewProber(new(mocks.MockFetcher), time.Second, ""),
		NewCooldown(time.Minute, zerolog.Nop()), nil, dial, zerolog.Nop())

	assert.Error(t, agent.Stop())
	require.NoError(t, agent.Start())
	assert.Error(t, agent.Start())
	require.NoError(t, agent.Stop())
	assert.Equal(t, StateDisconnected, agent.Connection().State())
}

package mqtt_middleware

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GauravPawar101/Validate-me/internal/mocks"
)

func completedToken(err error) *mocks.MockToken {
	token := new(mocks.MockToken)
	token.On("WaitTimeout", mock.Anything).Return(true)
	token.On("Error").Return(err)
	return token
}

// TestChainedMQTTClient_Direct tests publishing without middlewares.
func TestChainedMQTTClient_Direct(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "ticks/site-1", byte(1), false, []byte(`{}`)).Return(completedToken(nil))

	chain := NewChainedMQTTClient(client, nil)
	require.NoError(t, chain.Publish("ticks/site-1", 1, false, []byte(`{}`)))
	client.AssertExpectations(t)
}

// TestChainedMQTTClient_Timeout tests that an unacknowledged publish fails.
func TestChainedMQTTClient_Timeout(t *testing.T) {
	token := new(mocks.MockToken)
	token.On("WaitTimeout", mock.Anything).Return(false)
	client := new(mocks.MockMQTTClient)
	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(token)

	chain := NewChainedMQTTClient(client, nil)
	assert.Error(t, chain.Publish("ticks/site-1", 0, false, []byte(`{}`)))
}

// TestEnvelopeMiddleware tests that payloads are wrapped with source and sequence.
func TestEnvelopeMiddleware(t *testing.T) {
	var published [][]byte
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "ticks/site-1", byte(0), false, mock.Anything).
		Run(func(args mock.Arguments) { published = append(published, args.Get(3).([]byte)) }).
		Return(completedToken(nil))

	envelope := NewEnvelopeMiddleware("hub-a")
	envelope.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	chain := NewChainedMQTTClient(client, []MQTTMiddleware{envelope})

	require.NoError(t, chain.Publish("ticks/site-1", 0, false, map[string]string{"status": "good"}))
	require.NoError(t, chain.Publish("ticks/site-1", 0, false, []byte(`{"status":"bad"}`)))
	require.Len(t, published, 2)

	var first, second Envelope
	require.NoError(t, json.Unmarshal(published[0], &first))
	require.NoError(t, json.Unmarshal(published[1], &second))
	assert.Equal(t, "hub-a", first.Source)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.JSONEq(t, `{"status":"good"}`, string(first.Payload))
	assert.JSONEq(t, `{"status":"bad"}`, string(second.Payload))
}

// TestRetryMiddleware tests that transient failures are retried and the last error is returned.
func TestRetryMiddleware(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Publish", "ticks/site-1", byte(0), false, mock.Anything).Return(completedToken(errors.New("broker busy"))).Once()
	client.On("Publish", "ticks/site-1", byte(0), false, mock.Anything).Return(completedToken(nil)).Once()

	chain := NewChainedMQTTClient(client, []MQTTMiddleware{NewRetryMiddleware(2, time.Millisecond, zerolog.Nop())})
	require.NoError(t, chain.Publish("ticks/site-1", 0, false, []byte(`{}`)))
	client.AssertNumberOfCalls(t, "Publish", 2)

	failing := new(mocks.MockMQTTClient)
	failing.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(completedToken(errors.New("down")))
	chain = NewChainedMQTTClient(failing, []MQTTMiddleware{NewRetryMiddleware(1, time.Millisecond, zerolog.Nop())})
	assert.EqualError(t, chain.Publish("ticks/site-1", 0, false, []byte(`{}`)), "down")
	failing.AssertNumberOfCalls(t, "Publish", 2)
}

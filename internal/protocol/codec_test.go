package protocol

import (
	"encoding/json"
	"testing"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncode_Envelope tests that payloads are wrapped with their type tag.
func TestEncode_Envelope(t *testing.T) {
	raw, err := Encode(&ValidateRequest{CorrelationID: "cb-1", URL: "https://example.com", TargetID: "site-1"})
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `"validate"`, string(env["type"]))
	assert.JSONEq(t, `{"correlationId":"cb-1","url":"https://example.com","targetId":"site-1"}`, string(env["data"]))
}

// TestDecode_DirectionSelectsVariant tests that the same tag decodes per receiving side.
func TestDecode_DirectionSelectsVariant(t *testing.T) {
	ack, err := Encode(&SignupAck{CorrelationID: "cb-1", ValidatorID: "val-1"})
	require.NoError(t, err)

	msg, err := DecodeFromHub(ack)
	require.NoError(t, err)
	got, ok := msg.(*SignupAck)
	require.True(t, ok)
	assert.Equal(t, "val-1", got.ValidatorID)

	result, err := Encode(&ValidateResult{
		CorrelationID: "cb-2",
		ValidatorID:   "val-1",
		TargetID:      "site-1",
		Status:        constants.StatusGood,
		Latency:       120,
		Details:       models.TickDetails{ResponseCode: 200},
		Signature:     signer.Signature{1, 2, 3},
	})
	require.NoError(t, err)

	msg, err = DecodeFromValidator(result)
	require.NoError(t, err)
	res, ok := msg.(*ValidateResult)
	require.True(t, ok)
	assert.Equal(t, constants.StatusGood, res.Status)
	assert.Equal(t, int64(120), res.Latency)
	assert.Equal(t, signer.Signature{1, 2, 3}, res.Signature)
	assert.Equal(t, 200, res.Details.ResponseCode)
}

// TestDecode_UnknownType tests that unrecognized tags decode to the fallback variant.
func TestDecode_UnknownType(t *testing.T) {
	msg, err := DecodeFromValidator([]byte(`{"type":"telemetry","data":{"x":1}}`))
	require.NoError(t, err)

	unknown, ok := msg.(*Unknown)
	require.True(t, ok)
	assert.Equal(t, MessageType("telemetry"), unknown.Type())
	assert.JSONEq(t, `{"x":1}`, string(unknown.Raw))

	// ping is only meaningful towards a validator
	msg, err = DecodeFromValidator([]byte(`{"type":"ping","data":{}}`))
	require.NoError(t, err)
	assert.IsType(t, &Unknown{}, msg)
}

// TestDecode_Malformed tests that broken frames are reported as malformed.
func TestDecode_Malformed(t *testing.T) {
	_, err := DecodeFromHub([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeFromHub([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeFromValidator([]byte(`{"type":"validate","data":{"latency":"fast"}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

// TestDecode_EmptyData tests that a missing data field yields a zero payload.
func TestDecode_EmptyData(t *testing.T) {
	msg, err := DecodeFromHub([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.IsType(t, &Ping{}, msg)
}

// TestAttestationPayload tests the exact signed byte layouts.
func TestAttestationPayload(t *testing.T) {
	assert.Equal(t, "cb-1|site-1|bad|0", string(AttestationPayload("cb-1", "site-1", constants.StatusBad, 0)))
	assert.Equal(t, "Signed message for cb-1, PUBKEY", string(SignupPayload("cb-1", "PUBKEY")))
}

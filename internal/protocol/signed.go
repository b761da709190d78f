package protocol

import (
	"fmt"

	"github.com/GauravPawar101/Validate-me/internal/constants"
)

// SignupPayload is the message a validator signs to prove key ownership at signup.
func SignupPayload(correlationID, publicKey string) []byte {
	return []byte(fmt.Sprintf("Signed message for %s, %s", correlationID, publicKey))
}

// AttestationPayload is the message a validator signs over a probe outcome.
func AttestationPayload(correlationID, targetID string, status constants.TickStatus, latencyMs int64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d", correlationID, targetID, status, latencyMs))
}

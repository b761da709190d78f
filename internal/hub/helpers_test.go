package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/internal/storage"
	"github.com/GauravPawar101/Validate-me/pkg/fetch"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

func newTestHub(t *testing.T, fetcher fetch.Fetcher, cfg Config) (*Hub, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	h, err := NewHub(cfg, store, probe.NewProber(fetcher, time.Second, ""), nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return h, store
}

func serve(t *testing.T, h *Hub) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func addTarget(t *testing.T, h *Hub, rawURL string) *models.Target {
	t.Helper()
	target, err := h.AddTarget(context.Background(), "acct-1", rawURL)
	require.NoError(t, err)
	return target
}

// fakeValidator speaks the validator side of the protocol over a real websocket.
type fakeValidator struct {
	t     *testing.T
	conn  *websocket.Conn
	pub   signer.PublicKey
	priv  signer.PrivateKey
	id    string
	inbox chan protocol.Message
}

func dialValidator(t *testing.T, wsURL string) *fakeValidator {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	pub, priv, err := signer.GenerateKeyPair()
	require.NoError(t, err)

	v := &fakeValidator{t: t, conn: conn, pub: pub, priv: priv, inbox: make(chan protocol.Message, 16)}
	t.Cleanup(func() { conn.Close() })
	go func() {
		defer close(v.inbox)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msg, err := protocol.DecodeFromHub(data); err == nil {
				v.inbox <- msg
			}
		}
	}()
	return v
}

func (v *fakeValidator) send(msg protocol.Message) {
	v.t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(v.t, err)
	require.NoError(v.t, v.conn.WriteMessage(websocket.TextMessage, data))
}

// next returns the next message or nil after timeout.
func (v *fakeValidator) next(timeout time.Duration) protocol.Message {
	select {
	case msg, ok := <-v.inbox:
		if !ok {
			return nil
		}
		return msg
	case <-time.After(timeout):
		return nil
	}
}

func (v *fakeValidator) signupRequest(version string) *protocol.SignupRequest {
	v.t.Helper()
	corrID := "signup-" + v.pub.String()[:8]
	sig, err := signer.Sign(v.priv, protocol.SignupPayload(corrID, v.pub.String()))
	require.NoError(v.t, err)
	return &protocol.SignupRequest{
		CorrelationID:   corrID,
		AddressHint:     "198.51.100.9",
		PublicKey:       v.pub.String(),
		Signature:       sig,
		ProtocolVersion: version,
	}
}

func (v *fakeValidator) signup() {
	v.t.Helper()
	req := v.signupRequest(constants.ProtocolVersion)
	v.send(req)
	ack, ok := v.next(2 * time.Second).(*protocol.SignupAck)
	require.True(v.t, ok, "expected a signup acknowledgement")
	require.Equal(v.t, req.CorrelationID, ack.CorrelationID)
	v.id = ack.ValidatorID
}

func (v *fakeValidator) nextRequest() *protocol.ValidateRequest {
	v.t.Helper()
	req, ok := v.next(2 * time.Second).(*protocol.ValidateRequest)
	require.True(v.t, ok, "expected a validation request")
	return req
}

func (v *fakeValidator) result(req *protocol.ValidateRequest, status constants.TickStatus, latencyMs int64) *protocol.ValidateResult {
	v.t.Helper()
	sig, err := signer.Sign(v.priv, protocol.AttestationPayload(req.CorrelationID, req.TargetID, status, latencyMs))
	require.NoError(v.t, err)
	return &protocol.ValidateResult{
		CorrelationID: req.CorrelationID,
		ValidatorID:   v.id,
		TargetID:      req.TargetID,
		Status:        status,
		Latency:       latencyMs,
		Signature:     sig,
		Timestamp:     time.Now(),
	}
}

func waitConnected(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.ConnectedValidators()) == n }, 2*time.Second, 10*time.Millisecond)
}

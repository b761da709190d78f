package hub

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
	"github.com/GauravPawar101/Validate-me/internal/utils"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
)

const writeTimeout = 10 * time.Second

// Conn is the subset of *websocket.Conn used by a session.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session is one validator connection. Identity fields are set by a
// successful signup and read by dispatchers on other goroutines.
type session struct {
	conn   Conn
	remote string

	writeMu sync.Mutex

	mu           sync.RWMutex
	validatorID  string
	publicKey    signer.PublicKey
	address      string
	capabilities map[string]struct{}
	load         *models.HostLoad

	inflight *atomic.Int32
	closed   *atomic.Bool
}

func newSession(conn Conn, remote string) *session {
	return &session{
		conn:     conn,
		remote:   remote,
		inflight: atomic.NewInt32(0),
		closed:   atomic.NewBool(false),
	}
}

func (s *session) bind(validatorID string, pub signer.PublicKey, address string, capabilities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validatorID = validatorID
	s.publicKey = pub
	s.address = address
	s.capabilities = utils.CapabilitySet(capabilities)
}

func (s *session) id() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validatorID
}

func (s *session) key() signer.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.publicKey
}

// supports reports whether the validator advertised scheme. An empty
// capability list accepts everything.
func (s *session) supports(scheme string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.capabilities) == 0 {
		return true
	}
	_, ok := s.capabilities[scheme]
	return ok
}

func (s *session) setLoad(load *models.HostLoad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load = load
}

func (s *session) send(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("session closed")
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *session) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.conn.Close()
	}
}

// ServeWS upgrades the request and serves the validator until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}
	h.Attach(r.Context(), conn, r.RemoteAddr)
}

// Attach runs the receive loop for conn. Messages are handled in arrival order.
func (h *Hub) Attach(ctx context.Context, conn Conn, remoteAddr string) {
	s := newSession(conn, remoteAddr)
	logger := h.logger.With().Str("remote", remoteAddr).Logger()
	logger.Info().Msg("Validator connected")

	defer func() {
		s.close()
		h.detach(ctx, s)
		logger.Info().Str("validator_id", s.id()).Msg("Validator disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Validator connection lost")
			}
			return
		}

		msg, err := protocol.DecodeFromValidator(data)
		if err != nil {
			h.violation(s, "malformed", err)
			continue
		}
		if !h.handle(ctx, s, msg) {
			return
		}
	}
}

// detach forgets s and abandons its in-flight tasks.
func (h *Hub) detach(ctx context.Context, s *session) {
	id := s.id()
	if id == "" {
		return
	}

	removed := h.sessions.RemoveCb(id, func(_ string, current *session, exists bool) bool {
		return exists && current == s
	})
	if !removed {
		return
	}
	h.metrics.SetValidatorsConnected(h.sessions.Count())

	if err := h.store.MarkValidatorOffline(context.WithoutCancel(ctx), id, h.now()); err != nil {
		h.logger.Error().Err(err).Str("validator_id", id).Msg("Failed to mark validator offline")
	}
	h.abandonValidatorTasks(context.WithoutCancel(ctx), id, "disconnected")
}

func hostOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/protocol"
)

// ErrNotConnected is returned by Send while no connection is established.
var ErrNotConnected = errors.New("not connected to hub")

const writeTimeout = 10 * time.Second

// State is the connection manager's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of *websocket.Conn used by the connection manager.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer returns a DialFunc backed by gorilla/websocket.
func WebsocketDialer(handshakeTimeout time.Duration) DialFunc {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Sender delivers a message to the hub.
type Sender interface {
	Send(msg protocol.Message) error
}

// ConnectionHandler reacts to connection events. All calls for one
// connection happen on the receive loop goroutine.
type ConnectionHandler interface {
	OnConnected(ctx context.Context, s Sender) error
	HandleMessage(ctx context.Context, s Sender, msg protocol.Message)
	OnDisconnected()
}

// Backoff returns the reconnect delay for attempt: min(1s * 2^attempt, 30s).
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := constants.ReconnectBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= constants.ReconnectMaxDelay {
			return constants.ReconnectMaxDelay
		}
	}
	return delay
}

// ConnectionManager keeps a duplex connection to the hub open, reconnecting
// with exponential backoff, and feeds decoded messages to its handler.
type ConnectionManager struct {
	url     string
	dial    DialFunc
	handler ConnectionHandler
	backoff func(attempt int) time.Duration
	logger  zerolog.Logger

	state   *atomic.Int32
	attempt *atomic.Int32

	writeMu sync.Mutex
	conn    Conn

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectionManager creates a manager for url. Nothing is dialed until Open.
func NewConnectionManager(url string, dial DialFunc, handler ConnectionHandler, logger zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		url:     url,
		dial:    dial,
		handler: handler,
		backoff: Backoff,
		logger:  logger,
		state:   atomic.NewInt32(int32(StateDisconnected)),
		attempt: atomic.NewInt32(0),
	}
}

// SetBackoff replaces the reconnect delay schedule.
func (cm *ConnectionManager) SetBackoff(fn func(attempt int) time.Duration) {
	cm.backoff = fn
}

// State returns the current connection state.
func (cm *ConnectionManager) State() State {
	return State(cm.state.Load())
}

// Attempt returns the number of consecutive failed connection attempts.
func (cm *ConnectionManager) Attempt() int {
	return int(cm.attempt.Load())
}

func (cm *ConnectionManager) setState(s State) {
	if prev := State(cm.state.Swap(int32(s))); prev != s {
		cm.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Connection state changed")
	}
}

// Open starts the connect/receive/reconnect loop in a separate goroutine.
func (cm *ConnectionManager) Open() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.ctx != nil {
		return errors.New("connection manager is already running")
	}

	cm.ctx, cm.cancel = context.WithCancel(context.Background())
	ctx := cm.ctx

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		cm.run(ctx)
	}()

	cm.logger.Info().Str("url", cm.url).Msg("Connection manager started")
	return nil
}

// CloseAndDrain sends farewell on a best-effort basis, closes the
// connection and waits for the loop to exit or ctx to expire.
func (cm *ConnectionManager) CloseAndDrain(ctx context.Context, farewell protocol.Message) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.ctx == nil {
		return errors.New("connection manager is not running")
	}

	if farewell != nil {
		if err := cm.Send(farewell); err != nil {
			cm.logger.Debug().Err(err).Msg("Farewell message not delivered")
		}
	}

	cm.writeMu.Lock()
	if cm.conn != nil {
		_ = cm.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = cm.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
	}
	cm.writeMu.Unlock()

	cm.cancel()

	done := make(chan struct{})
	go func() {
		cm.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for connection loop: %w", ctx.Err())
	}

	cm.ctx = nil
	cm.cancel = nil
	cm.logger.Info().Msg("Connection manager stopped")
	return err
}

// Send encodes msg and writes it to the current connection.
func (cm *ConnectionManager) Send(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	cm.writeMu.Lock()
	defer cm.writeMu.Unlock()

	if cm.conn == nil {
		return ErrNotConnected
	}
	if err := cm.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := cm.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type(), err)
	}
	return nil
}

func (cm *ConnectionManager) run(ctx context.Context) {
	defer cm.setState(StateDisconnected)

	for ctx.Err() == nil {
		cm.setState(StateConnecting)
		conn, err := cm.dial(ctx, cm.url)
		if err != nil {
			cm.logger.Warn().Err(err).Str("url", cm.url).Msg("Failed to connect to hub")
			if !cm.waitReconnect(ctx) {
				return
			}
			continue
		}

		cm.attach(conn)
		cm.logger.Info().Str("url", cm.url).Msg("Connected to hub")

		if err := cm.handler.OnConnected(ctx, cm); err != nil {
			cm.logger.Error().Err(err).Msg("Connection setup failed")
			conn.Close()
		}

		err = cm.receive(ctx, conn)
		cm.detach()
		cm.handler.OnDisconnected()

		if ctx.Err() != nil {
			return
		}
		cm.logger.Warn().Err(err).Msg("Connection to hub lost")
		if !cm.waitReconnect(ctx) {
			return
		}
	}
}

func (cm *ConnectionManager) attach(conn Conn) {
	cm.writeMu.Lock()
	cm.conn = conn
	cm.writeMu.Unlock()

	cm.attempt.Store(0)
	cm.setState(StateConnected)
}

func (cm *ConnectionManager) detach() {
	cm.writeMu.Lock()
	if cm.conn != nil {
		cm.conn.Close()
		cm.conn = nil
	}
	cm.writeMu.Unlock()

	cm.setState(StateDisconnected)
}

// waitReconnect sleeps for the current backoff delay. It reports false if
// ctx ended first.
func (cm *ConnectionManager) waitReconnect(ctx context.Context) bool {
	cm.setState(StateDisconnected)

	attempt := int(cm.attempt.Load())
	delay := cm.backoff(attempt)
	cm.attempt.Inc()

	cm.logger.Info().Dur("delay", delay).Int("attempt", attempt).Msg("Scheduling reconnect")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// receive reads frames until the connection fails or ctx ends.
// Messages are handled one at a time in arrival order.
func (cm *ConnectionManager) receive(ctx context.Context, conn Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.DecodeFromHub(data)
		if err != nil {
			cm.logger.Warn().Err(err).Msg("Dropping undecodable message")
			continue
		}
		cm.handler.HandleMessage(ctx, cm, msg)
	}
}

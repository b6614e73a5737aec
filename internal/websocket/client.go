package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/auth"
	"github.com/xaudioproject/webapiclient/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed for the opening handshake.
	handshakeTimeout = 15 * time.Second

	// Time to wait for the server to answer our close frame.
	closeGracePeriod = time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

// ErrTransport marks connection level failures. They are fatal for the run.
var ErrTransport = errors.New("transport error")

// State is the lifecycle state of a Session
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Dispatcher consumes decoded inbound envelopes
type Dispatcher interface {
	Dispatch(env protocol.Envelope) (protocol.Event, error)
}

// SessionConfig describes one streaming session
type SessionConfig struct {
	Endpoint    string
	Credentials auth.Credentials
	From        string
	To          string
	SampleRate  int
}

// Session drives one streaming session end to end: it connects, streams the
// audio from a single transmit goroutine and dispatches inbound frames until
// the server closes the connection.
type Session struct {
	id         string
	cfg        SessionConfig
	dialer     *websocket.Dialer
	dispatcher Dispatcher
	logger     *zap.Logger
	state      atomic.Int32
}

// frameWriter is the part of the connection used by the transmit goroutine
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// NewSession creates an idle session
func NewSession(cfg SessionConfig, dispatcher Dispatcher, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:  id,
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("sessionID", id)),
	}
}

// ID returns the session correlation ID used in logs
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	old := State(s.state.Swap(int32(state)))
	if old != state {
		s.logger.Debug("Session state changed",
			zap.Stringer("from", old),
			zap.Stringer("to", state))
	}
}

// BuildURL appends the signed authentication query to endpoint
func BuildURL(endpoint string, creds auth.Credentials, from, to string, sampleRate int, now time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	req, err := auth.NewSignatureRequest(creds.AppID, now)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("appID", req.AppID)
	q.Set("salt", req.Salt)
	q.Set("timestamp", req.Timestamp)
	q.Set("sign", req.Sign(creds.AppSecret))
	q.Set("from", from)
	q.Set("to", to)
	q.Set("rate", strconv.Itoa(sampleRate))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Run connects, streams audio and blocks until the connection closes. A
// server initiated close returns nil; any transport failure returns an error
// wrapping ErrTransport. Cancelling ctx sends a normal closure to the server.
func (s *Session) Run(ctx context.Context, audio []byte) error {
	s.setState(StateConnecting)

	target, err := BuildURL(s.cfg.Endpoint, s.cfg.Credentials, s.cfg.From, s.cfg.To, s.cfg.SampleRate, time.Now())
	if err != nil {
		s.setState(StateClosed)
		return err
	}

	s.logger.Info("Connecting to streaming service",
		zap.String("endpoint", s.cfg.Endpoint),
		zap.String("from", s.cfg.From),
		zap.String("to", s.cfg.To),
		zap.Int("sampleRate", s.cfg.SampleRate))

	conn, resp, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		s.setState(StateClosed)
		if resp != nil {
			s.logger.Error("WebSocket handshake rejected",
				zap.Int("statusCode", resp.StatusCode),
				zap.Error(err))
		}
		return fmt.Errorf("%w: failed to connect: %w", ErrTransport, err)
	}
	defer conn.Close()

	s.setState(StateOpen)
	s.logger.Info("WebSocket connected")

	conn.SetReadLimit(maxMessageSize)

	txErr := make(chan error, 1)
	go s.transmit(conn, audio, txErr)

	stop := context.AfterFunc(ctx, func() {
		s.closeGracefully(conn)
	})
	defer stop()

	return s.receive(ctx, conn, txErr)
}

// transmit sends every audio chunk in order followed by audio/end. It does
// not close the connection unless a write fails.
func (s *Session) transmit(conn frameWriter, audio []byte, errCh chan<- error) {
	s.state.CompareAndSwap(int32(StateOpen), int32(StateStreaming))

	chunks := protocol.ChunkAudio(audio)
	start := time.Now()

	s.logger.Info("Streaming audio",
		zap.Int("totalBytes", len(audio)),
		zap.Int("totalChunks", len(chunks)))

	for i, chunk := range chunks {
		if err := writeEnvelope(conn, chunk); err != nil {
			s.failTransmit(conn, errCh, fmt.Errorf("failed to send audio chunk %d: %w", i, err))
			return
		}
		s.logger.Debug("Sent audio chunk", zap.Int("chunkNumber", i+1))
	}

	if err := writeEnvelope(conn, protocol.NewAudioEnd()); err != nil {
		s.failTransmit(conn, errCh, fmt.Errorf("failed to send audio end: %w", err))
		return
	}

	s.state.CompareAndSwap(int32(StateStreaming), int32(StateDraining))
	s.logger.Info("Finished streaming audio", zap.Duration("duration", time.Since(start)))
}

func (s *Session) failTransmit(conn frameWriter, errCh chan<- error, err error) {
	s.logger.Error("Transmit failed", zap.Error(err))
	errCh <- err
	conn.Close()
}

func writeEnvelope(conn frameWriter, env protocol.Envelope) error {
	payload, err := env.Marshal()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// receive reads frames until the connection ends. Dispatch calls never overlap.
func (s *Session) receive(ctx context.Context, conn *websocket.Conn, txErr <-chan error) error {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return s.finish(ctx, err, txErr)
		}

		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			s.logger.Error("Failed to decode frame", zap.Error(err))
			continue
		}

		if _, err := s.dispatcher.Dispatch(env); err != nil {
			s.logger.Error("Dropped malformed frame",
				zap.String("type", string(env.Type)),
				zap.Error(err))
		}
	}
}

func (s *Session) finish(ctx context.Context, readErr error, txErr <-chan error) error {
	s.setState(StateClosed)

	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
		s.logger.Info("WebSocket closed",
			zap.Int("code", closeErr.Code),
			zap.String("reason", closeErr.Text))
		return nil
	}

	select {
	case err := <-txErr:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	default:
	}

	if ctx.Err() != nil {
		s.logger.Warn("Session interrupted", zap.Error(readErr))
		return ctx.Err()
	}

	s.logger.Error("Unexpected transport error", zap.Error(readErr))
	return fmt.Errorf("%w: %w", ErrTransport, readErr)
}

// closeGracefully starts the closing handshake and force closes the
// connection if the server does not finish it in time.
func (s *Session) closeGracefully(conn *websocket.Conn) {
	s.logger.Info("Closing connection")

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Warn("Failed to write close message", zap.Error(err))
		conn.Close()
		return
	}

	time.AfterFunc(closeGracePeriod, func() {
		conn.Close()
	})
}

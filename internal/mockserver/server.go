package mockserver

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/auth"
	"github.com/xaudioproject/webapiclient/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server is a loopback speech-translation endpoint. It authenticates the
// connection query, collects the streamed audio and, once audio/end arrives,
// answers with a scripted transcription, translation and the audio echoed back.
type Server struct {
	creds    auth.Credentials
	logger   *zap.Logger
	upgrader websocket.Upgrader
	metrics  *metrics

	mu       sync.Mutex
	received []protocol.Envelope
}

type metrics struct {
	registry       *prometheus.Registry
	sessions       prometheus.Counter
	authFailures   prometheus.Counter
	framesReceived *prometheus.CounterVec
	audioBytes     prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xap_loopback_sessions_total",
			Help: "Total number of accepted streaming sessions",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xap_loopback_auth_failures_total",
			Help: "Total number of rejected connection attempts",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xap_loopback_frames_received_total",
			Help: "Total number of frames received by message type",
		}, []string{"type"}),
		audioBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xap_loopback_audio_bytes_total",
			Help: "Total number of raw audio bytes received",
		}),
	}
	m.registry.MustRegister(m.sessions, m.authFailures, m.framesReceived, m.audioBytes)
	return m
}

// NewServer creates a loopback server accepting the given credentials
func NewServer(creds auth.Credentials, logger *zap.Logger) *Server {
	return &Server{
		creds:  creds,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		metrics: newMetrics(),
	}
}

// NewEcho builds the HTTP router serving the loopback endpoints
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("Request",
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	InitRoutes(e, s)
	return e
}

// InitRoutes registers the loopback routes on e
func InitRoutes(e *echo.Echo, s *Server) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "xap-loopback",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	e.GET("/ws", s.handleStream)
}

// Received returns a copy of every envelope received so far, in arrival order
func (s *Server) Received() []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.Envelope, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Server) record(env protocol.Envelope) {
	s.mu.Lock()
	s.received = append(s.received, env)
	s.mu.Unlock()

	s.metrics.framesReceived.WithLabelValues(string(env.Type)).Inc()
}

var requiredParams = []string{"appID", "salt", "timestamp", "sign", "from", "to", "rate"}

func (s *Server) handleStream(c echo.Context) error {
	params := c.QueryParams()
	for _, name := range requiredParams {
		if params.Get(name) == "" {
			s.metrics.authFailures.Inc()
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "missing_fields",
				Message: fmt.Sprintf("query parameter %s is required", name),
			})
		}
	}

	err := auth.Verify(s.creds, params.Get("appID"), params.Get("salt"), params.Get("timestamp"), params.Get("sign"))
	if err != nil {
		s.metrics.authFailures.Inc()
		s.logger.Warn("Connection rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid signature",
		})
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	id := uuid.NewString()
	sc := newStreamConn(s, conn, params.Get("from"), params.Get("to"), s.logger.With(zap.String("connectionID", id)))
	s.metrics.sessions.Inc()
	sc.logger.Info("Stream opened", zap.String("from", sc.from), zap.String("to", sc.to))

	go sc.writePump()
	go sc.readPump()

	return nil
}

package mockserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/protocol"
)

// Time to wait for the client to answer our close frame.
const closeGracePeriod = time.Second

// streamConn is one accepted streaming connection. readPump owns the audio
// buffer and is the only producer on send.
type streamConn struct {
	server *Server
	conn   *websocket.Conn
	logger *zap.Logger

	// Buffered channel of outbound text frames. Closing it ends the stream.
	send      chan []byte
	sendOnce  sync.Once
	writeDone chan struct{}
	readDone  chan struct{}

	from      string
	to        string
	audio     []byte
	responded bool
}

func newStreamConn(server *Server, conn *websocket.Conn, from, to string, logger *zap.Logger) *streamConn {
	return &streamConn{
		server:    server,
		conn:      conn,
		logger:    logger,
		send:      make(chan []byte, 256),
		writeDone: make(chan struct{}),
		readDone:  make(chan struct{}),
		from:      from,
		to:        to,
	}
}

// readPump collects audio until audio/end, then answers and keeps reading
// until the client finishes the closing handshake.
func (c *streamConn) readPump() {
	defer func() {
		c.closeSend()
		close(c.readDone)
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			return
		}

		env, err := protocol.DecodeEnvelope(frame)
		if err != nil {
			c.logger.Warn("Failed to decode frame", zap.Error(err))
			continue
		}
		c.server.record(env)

		switch env.Type {
		case protocol.MessageTypeAudio:
			raw, err := env.AudioPayload()
			if err != nil {
				c.logger.Warn("Invalid audio chunk", zap.Error(err))
				continue
			}
			c.audio = append(c.audio, raw...)
			c.server.metrics.audioBytes.Add(float64(len(raw)))
			c.logger.Debug("Received audio chunk",
				zap.Int("size", len(raw)),
				zap.Int("totalBytes", len(c.audio)))

		case protocol.MessageTypeAudioEnd:
			if c.responded {
				c.logger.Warn("Duplicate audio end")
				continue
			}
			c.logger.Info("Audio stream ended", zap.Int("totalBytes", len(c.audio)))
			c.responded = true
			c.respond()

		default:
			c.logger.Warn("Unknown message type", zap.String("type", string(env.Type)))
		}
	}
}

// writePump writes queued frames, then closes the stream normally once send
// is closed.
func (c *streamConn) writePump() {
	defer func() {
		close(c.writeDone)
		c.conn.Close()
	}()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.logger.Error("Failed to write message", zap.Error(err))
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream finished")
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		c.logger.Warn("Failed to write close message", zap.Error(err))
		return
	}

	select {
	case <-c.readDone:
	case <-time.After(closeGracePeriod):
	}
	c.logger.Info("Stream closed")
}

// respond queues the scripted results for the collected audio and ends the stream
func (c *streamConn) respond() {
	sentence := fmt.Sprintf("received %d bytes of %s audio", len(c.audio), c.from)
	translation := fmt.Sprintf("[%s] %s", c.to, sentence)

	envs := []protocol.Envelope{
		protocol.NewSentence(protocol.MessageTypeOrigin, partial(sentence), false),
		protocol.NewSentence(protocol.MessageTypeOrigin, sentence, true),
		{Type: protocol.MessageTypeOriginEnd},
		protocol.NewSentence(protocol.MessageTypeTranslation, partial(translation), false),
		protocol.NewSentence(protocol.MessageTypeTranslation, translation, true),
		{Type: protocol.MessageTypeTranslationEnd},
	}
	envs = append(envs, protocol.ChunkAudio(c.audio)...)
	envs = append(envs, protocol.Envelope{Type: protocol.MessageTypeAudioFlush}, protocol.NewAudioEnd())

	for _, env := range envs {
		payload, err := env.Marshal()
		if err != nil {
			c.logger.Error("Failed to encode response", zap.Error(err))
			continue
		}
		select {
		case c.send <- payload:
		case <-c.writeDone:
			return
		}
	}

	c.closeSend()
}

func (c *streamConn) closeSend() {
	c.sendOnce.Do(func() {
		close(c.send)
	})
}

// partial returns the first half of the words in s, as an interim result
func partial(s string) string {
	words := strings.Fields(s)
	n := max(1, len(words)/2)
	if n > len(words) {
		return s
	}
	return strings.Join(words[:n], " ")
}

package dispatch

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/protocol"
)

// AudioSink receives decoded audio from the server and persists it once the
// audio stream ends.
type AudioSink interface {
	io.Writer
	Save() error
}

// Dispatcher routes inbound envelopes to human-readable console output
type Dispatcher struct {
	out    io.Writer
	logger *zap.Logger
	sink   AudioSink
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithAudioSink records received audio into sink
func WithAudioSink(sink AudioSink) Option {
	return func(d *Dispatcher) {
		d.sink = sink
	}
}

// NewDispatcher creates a dispatcher printing to out
func NewDispatcher(out io.Writer, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		out:    out,
		logger: logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch classifies env and renders it. Malformed payloads are returned as
// errors and print nothing.
func (d *Dispatcher) Dispatch(env protocol.Envelope) (protocol.Event, error) {
	event, err := protocol.Classify(env)
	if err != nil {
		return protocol.Event{}, err
	}

	switch event.Kind {
	case protocol.EventOriginPartial:
		d.printf("[RX][ORI][PARTIAL] Sentence: %s", event.Sentence)
	case protocol.EventOriginFinal:
		d.printf("[RX][ORI][FINAL] Sentence: %s", event.Sentence)
	case protocol.EventOriginEnd:
		d.printf("[RX][ORI] Finished!")
	case protocol.EventTranslationPartial:
		d.printf("[RX][TRAN][PARTIAL] Sentence: %s", event.Sentence)
	case protocol.EventTranslationFinal:
		d.printf("[RX][TRAN][FINAL] Sentence: %s", event.Sentence)
	case protocol.EventTranslationEnd:
		d.printf("[RX][TRAN] Finished!")
	case protocol.EventAudioChunk:
		d.printf("[RX][AU] %d bytes.", len(event.Audio))
		d.record(event.Audio)
	case protocol.EventAudioFlush:
		d.printf("[RX][AU] Flush!")
	case protocol.EventAudioEnd:
		d.printf("[RX][AU] Finished!")
		d.save()
	case protocol.EventUnknown:
		d.printf("[RX][ERROR] Unknown chunk.")
		d.logger.Warn("Unknown chunk", zap.String("type", string(event.Tag)))
	}

	return event, nil
}

func (d *Dispatcher) printf(format string, args ...interface{}) {
	fmt.Fprintf(d.out, format+"\n", args...)
}

func (d *Dispatcher) record(audio []byte) {
	if d.sink == nil {
		return
	}
	if _, err := d.sink.Write(audio); err != nil {
		d.logger.Error("Failed to record audio chunk", zap.Error(err))
	}
}

func (d *Dispatcher) save() {
	if d.sink == nil {
		return
	}
	if err := d.sink.Save(); err != nil {
		d.logger.Error("Failed to save received audio", zap.Error(err))
		return
	}
	d.logger.Info("Saved received audio")
}

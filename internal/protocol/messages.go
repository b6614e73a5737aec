package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// MessageType defines the type tag of a streaming message
type MessageType string

// Supported message types
const (
	MessageTypeAudio          MessageType = "audio"
	MessageTypeAudioEnd       MessageType = "audio/end"
	MessageTypeAudioFlush     MessageType = "audio/flush"
	MessageTypeOrigin         MessageType = "origin"
	MessageTypeOriginEnd      MessageType = "origin/end"
	MessageTypeTranslation    MessageType = "translation"
	MessageTypeTranslationEnd MessageType = "translation/end"
)

// Envelope is one JSON object carried in a single text frame
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AudioData is the payload of an audio message
type AudioData struct {
	Audio string `json:"audio"` // base64 encoded
}

// SentenceData is the payload of origin and translation messages
type SentenceData struct {
	IsFinal  bool   `json:"is-final"`
	Sentence string `json:"sentence"`
}

// NewAudioChunk wraps raw audio bytes into an audio envelope
func NewAudioChunk(raw []byte) Envelope {
	data, _ := json.Marshal(AudioData{
		Audio: base64.StdEncoding.EncodeToString(raw),
	})
	return Envelope{Type: MessageTypeAudio, Data: data}
}

// NewAudioEnd creates the envelope that terminates the outbound audio stream
func NewAudioEnd() Envelope {
	return Envelope{Type: MessageTypeAudioEnd}
}

// NewSentence creates an origin or translation envelope
func NewSentence(msgType MessageType, sentence string, isFinal bool) Envelope {
	data, _ := json.Marshal(SentenceData{IsFinal: isFinal, Sentence: sentence})
	return Envelope{Type: msgType, Data: data}
}

// Marshal encodes the envelope for transmission
func (e Envelope) Marshal() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", e.Type, err)
	}
	return payload, nil
}

// DecodeEnvelope parses one inbound frame
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid JSON format: %w", err)
	}
	return env, nil
}

// AudioPayload decodes the base64 audio carried by an audio envelope
func (e Envelope) AudioPayload() ([]byte, error) {
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("%s message has no data", e.Type)
	}

	var data AudioData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("invalid audio message: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(data.Audio)
	if err != nil {
		return nil, fmt.Errorf("invalid audio payload: %w", err)
	}
	return raw, nil
}

// SentencePayload decodes the sentence carried by an origin or translation envelope
func (e Envelope) SentencePayload() (SentenceData, error) {
	if len(e.Data) == 0 {
		return SentenceData{}, fmt.Errorf("%s message has no data", e.Type)
	}

	var data SentenceData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return SentenceData{}, fmt.Errorf("invalid %s message: %w", e.Type, err)
	}
	return data, nil
}

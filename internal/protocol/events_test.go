package protocol

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		wantKind     EventKind
		wantSentence string
		wantAudioLen int
		wantErr      bool
	}{
		{
			name:         "origin partial",
			message:      `{"type":"origin","data":{"is-final":false,"sentence":"hi"}}`,
			wantKind:     EventOriginPartial,
			wantSentence: "hi",
		},
		{
			name:         "origin final",
			message:      `{"type":"origin","data":{"is-final":true,"sentence":"hi"}}`,
			wantKind:     EventOriginFinal,
			wantSentence: "hi",
		},
		{
			name:     "origin end",
			message:  `{"type":"origin/end"}`,
			wantKind: EventOriginEnd,
		},
		{
			name:         "translation partial",
			message:      `{"type":"translation","data":{"is-final":false,"sentence":"hola"}}`,
			wantKind:     EventTranslationPartial,
			wantSentence: "hola",
		},
		{
			name:         "translation final",
			message:      `{"type":"translation","data":{"is-final":true,"sentence":"hola"}}`,
			wantKind:     EventTranslationFinal,
			wantSentence: "hola",
		},
		{
			name:     "translation end",
			message:  `{"type":"translation/end"}`,
			wantKind: EventTranslationEnd,
		},
		{
			name:         "audio chunk",
			message:      `{"type":"audio","data":{"audio":"YWJj"}}`,
			wantKind:     EventAudioChunk,
			wantAudioLen: 3,
		},
		{
			name:     "audio flush",
			message:  `{"type":"audio/flush"}`,
			wantKind: EventAudioFlush,
		},
		{
			name:     "audio end",
			message:  `{"type":"audio/end"}`,
			wantKind: EventAudioEnd,
		},
		{
			name:     "unknown tag",
			message:  `{"type":"bogus"}`,
			wantKind: EventUnknown,
		},
		{
			name:     "missing tag",
			message:  `{}`,
			wantKind: EventUnknown,
		},
		{
			name:    "origin without data",
			message: `{"type":"origin"}`,
			wantErr: true,
		},
		{
			name:    "audio with bad base64",
			message: `{"type":"audio","data":{"audio":"***"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.message))
			if err != nil {
				t.Fatalf("DecodeEnvelope() error = %v", err)
			}

			event, err := Classify(env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Classify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if event.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, event.Kind)
			}
			if event.Sentence != tt.wantSentence {
				t.Errorf("Expected sentence %q, got %q", tt.wantSentence, event.Sentence)
			}
			if len(event.Audio) != tt.wantAudioLen {
				t.Errorf("Expected %d audio bytes, got %d", tt.wantAudioLen, len(event.Audio))
			}
		})
	}
}

func TestDecodeEnvelope_InvalidJSON(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestEventKind_String(t *testing.T) {
	if EventOriginPartial.String() == EventOriginFinal.String() {
		t.Error("Partial and final kinds must render differently")
	}
	if EventKind(99).String() != "unknown" {
		t.Errorf("Expected unknown, got %s", EventKind(99).String())
	}
}

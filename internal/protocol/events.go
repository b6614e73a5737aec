package protocol

// EventKind classifies an inbound envelope
type EventKind int

const (
	EventUnknown EventKind = iota
	EventOriginPartial
	EventOriginFinal
	EventOriginEnd
	EventTranslationPartial
	EventTranslationFinal
	EventTranslationEnd
	EventAudioChunk
	EventAudioFlush
	EventAudioEnd
)

func (k EventKind) String() string {
	switch k {
	case EventOriginPartial:
		return "origin-partial"
	case EventOriginFinal:
		return "origin-final"
	case EventOriginEnd:
		return "origin-end"
	case EventTranslationPartial:
		return "translation-partial"
	case EventTranslationFinal:
		return "translation-final"
	case EventTranslationEnd:
		return "translation-end"
	case EventAudioChunk:
		return "audio-chunk"
	case EventAudioFlush:
		return "audio-flush"
	case EventAudioEnd:
		return "audio-end"
	default:
		return "unknown"
	}
}

// Event is an inbound envelope materialized into the application's taxonomy.
// Sentence is set for origin and translation events, Audio for audio chunks,
// Tag always holds the raw type tag.
type Event struct {
	Kind     EventKind
	Tag      MessageType
	Sentence string
	Audio    []byte
}

// Classify maps an envelope onto an Event. Unrecognized tags produce an
// EventUnknown without error; malformed payloads of known tags are errors.
func Classify(env Envelope) (Event, error) {
	event := Event{Tag: env.Type}

	switch env.Type {
	case MessageTypeOrigin, MessageTypeTranslation:
		data, err := env.SentencePayload()
		if err != nil {
			return Event{}, err
		}
		event.Sentence = data.Sentence
		event.Kind = sentenceKind(env.Type, data.IsFinal)

	case MessageTypeOriginEnd:
		event.Kind = EventOriginEnd

	case MessageTypeTranslationEnd:
		event.Kind = EventTranslationEnd

	case MessageTypeAudio:
		raw, err := env.AudioPayload()
		if err != nil {
			return Event{}, err
		}
		event.Kind = EventAudioChunk
		event.Audio = raw

	case MessageTypeAudioFlush:
		event.Kind = EventAudioFlush

	case MessageTypeAudioEnd:
		event.Kind = EventAudioEnd

	default:
		event.Kind = EventUnknown
	}

	return event, nil
}

func sentenceKind(msgType MessageType, isFinal bool) EventKind {
	if msgType == MessageTypeOrigin {
		if isFinal {
			return EventOriginFinal
		}
		return EventOriginPartial
	}
	if isFinal {
		return EventTranslationFinal
	}
	return EventTranslationPartial
}

package protocol

// MaxChunkSize is the largest number of raw audio bytes carried by one audio
// envelope, before base64 encoding.
const MaxChunkSize = 0x8FFE

// ChunkAudio splits audio into ordered audio envelopes of at most
// MaxChunkSize raw bytes each. An empty buffer yields no envelopes.
func ChunkAudio(audio []byte) []Envelope {
	if len(audio) == 0 {
		return nil
	}

	chunks := make([]Envelope, 0, (len(audio)+MaxChunkSize-1)/MaxChunkSize)
	for len(audio) > 0 {
		n := min(len(audio), MaxChunkSize)
		chunks = append(chunks, NewAudioChunk(audio[:n]))
		audio = audio[n:]
	}
	return chunks
}

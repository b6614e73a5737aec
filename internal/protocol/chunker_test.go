package protocol

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reassemble(t *testing.T, chunks []Envelope) []byte {
	t.Helper()

	var out []byte
	for i, chunk := range chunks {
		require.Equal(t, MessageTypeAudio, chunk.Type, "chunk %d has wrong type", i)
		raw, err := chunk.AudioPayload()
		require.NoError(t, err, "chunk %d", i)
		assert.LessOrEqual(t, len(raw), MaxChunkSize, "chunk %d exceeds max size", i)
		out = append(out, raw...)
	}
	return out
}

func TestChunkAudio_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	sizes := []int{
		1,
		3,
		MaxChunkSize - 1,
		MaxChunkSize,
		MaxChunkSize + 1,
		2 * MaxChunkSize,
		70000,
		250001,
	}

	for _, size := range sizes {
		audio := make([]byte, size)
		rng.Read(audio)

		chunks := ChunkAudio(audio)
		wantChunks := (size + MaxChunkSize - 1) / MaxChunkSize
		assert.Len(t, chunks, wantChunks, "size %d", size)

		got := reassemble(t, chunks)
		if !bytes.Equal(got, audio) {
			t.Errorf("Round trip mismatch for size %d", size)
		}
	}
}

func TestChunkAudio_Empty(t *testing.T) {
	assert.Empty(t, ChunkAudio(nil))
	assert.Empty(t, ChunkAudio([]byte{}))
}

func TestChunkAudio_SeventyThousandBytes(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01, 0x02}, 35000)

	chunks := ChunkAudio(audio)
	require.Len(t, chunks, 2)

	first, err := chunks[0].AudioPayload()
	require.NoError(t, err)
	second, err := chunks[1].AudioPayload()
	require.NoError(t, err)

	assert.Len(t, first, 36862)
	assert.Len(t, second, 33138)
}

func TestChunkAudio_WireFormat(t *testing.T) {
	chunks := ChunkAudio([]byte("abc"))
	require.Len(t, chunks, 1)

	payload, err := chunks[0].Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"audio","data":{"audio":"YWJj"}}`, string(payload))

	end, err := NewAudioEnd().Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"audio/end"}`, string(end))
}

func TestChunkAudio_DoesNotAliasInput(t *testing.T) {
	audio := []byte("hello world")
	chunks := ChunkAudio(audio)
	audio[0] = 'H'

	var data AudioData
	require.NoError(t, json.Unmarshal(chunks[0].Data, &data))
	assert.Equal(t, "aGVsbG8gd29ybGQ=", data.Audio)
}

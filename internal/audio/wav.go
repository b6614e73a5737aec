package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

// WAVHeader represents the header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

const headerSize = 44

// EncodeWAV wraps signed 16-bit little-endian mono PCM into a WAV container.
// A trailing odd byte is dropped since it cannot form a sample.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	pcm = pcm[:len(pcm)&^1]

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(pcm))

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// Recorder accumulates PCM received from the server and saves it as WAV
type Recorder struct {
	path       string
	sampleRate int

	mu  sync.Mutex
	pcm []byte
}

// NewRecorder creates a recorder writing to path at the given sample rate
func NewRecorder(path string, sampleRate int) *Recorder {
	return &Recorder{
		path:       path,
		sampleRate: sampleRate,
	}
}

// Write appends PCM data
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pcm = append(r.pcm, p...)
	return len(p), nil
}

// Len returns the number of buffered PCM bytes
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pcm)
}

// Path returns the output file path
func (r *Recorder) Path() string {
	return r.path
}

// Save writes the buffered audio to the output file and resets the buffer
func (r *Recorder) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wav, err := EncodeWAV(r.pcm, r.sampleRate)
	if err != nil {
		return err
	}

	if err := os.WriteFile(r.path, wav, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	r.pcm = nil
	return nil
}

package recorder

import (
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/atcfusion/engine/internal/storage"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := make([]byte, 320) // 160 samples
	w := EncodeWAV(pcm, 16000, 1)

	require.Equal(t, "RIFF", string(w[0:4]))
	require.Equal(t, "WAVE", string(w[8:12]))
	require.Equal(t, "fmt ", string(w[12:16]))
	require.Equal(t, "data", string(w[36:40]))

	riffSize := binary.LittleEndian.Uint32(w[4:8])
	require.Equal(t, uint32(36+len(pcm)), riffSize)

	sampleRate := binary.LittleEndian.Uint32(w[24:28])
	require.Equal(t, uint32(16000), sampleRate)

	dataSize := binary.LittleEndian.Uint32(w[40:44])
	require.Equal(t, uint32(len(pcm)), dataSize)
	require.Equal(t, pcm, w[44:])
}

func TestDurationSeconds(t *testing.T) {
	// 1 second of mono 16kHz 16-bit PCM is 32000 bytes.
	require.InDelta(t, 1.0, DurationSeconds(32000, 16000, 1), 1e-9)
	require.InDelta(t, 0.5, DurationSeconds(16000, 16000, 1), 1e-9)
	require.Equal(t, 0.0, DurationSeconds(100, 0, 1))
}

func TestFinalizeDiscardsBelowMinimumLength(t *testing.T) {
	dir := t.TempDir()
	called := false
	r := New(Options{
		ChannelID:             "test",
		SampleRate:            16000,
		Channels:              1,
		MinTransmissionLength: 1.0,
		Store:                 storage.NewLocalStore(dir),
		Callback:              func(Segment) { called = true },
		Log:                   zerolog.Nop(),
	})

	// 0.1s of PCM, below the 1.0s minimum.
	shortPCM := make([]byte, 3200)
	r.finalize(shortPCM)
	require.False(t, called, "segment shorter than MinTransmissionLength must be discarded")
}

func TestFinalizeWritesAndInvokesCallback(t *testing.T) {
	dir := t.TempDir()
	var got Segment
	r := New(Options{
		ChannelID:             "test",
		Frequency:             "118.7",
		SampleRate:            16000,
		Channels:              1,
		MinTransmissionLength: 0.5,
		Store:                 storage.NewLocalStore(dir),
		Callback:              func(s Segment) { got = s },
		Log:                   zerolog.Nop(),
	})

	longPCM := make([]byte, 32000) // 1s
	r.finalize(longPCM)

	require.Equal(t, "test", got.ChannelID)
	require.NotEmpty(t, got.Path)
	require.Contains(t, got.Path, "118p7")
}

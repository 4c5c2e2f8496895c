package vad

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func pcmChunk(samples int, amplitude int16) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(amplitude))
	}
	return buf
}

func TestDetectorRMS(t *testing.T) {
	d := NewDetector(0.1)
	silence := pcmChunk(1024, 0)
	require.InDelta(t, 0, d.RMS(silence), 1e-9)

	loud := pcmChunk(1024, 10000)
	require.Greater(t, d.RMS(loud), 0.1)
	require.True(t, d.IsActive(loud))
	require.False(t, d.IsActive(silence))
}

func TestStateMachineConstantSilenceEmitsNoSegments(t *testing.T) {
	sm := NewStateMachine(NewDetector(0.1), 3)
	silence := pcmChunk(512, 0)
	for i := 0; i < 50; i++ {
		tr := sm.Feed(silence)
		require.False(t, tr.Finalize)
		require.False(t, tr.Recording)
	}
}

func TestStateMachineConstantNoiseOpensExactlyOneSegment(t *testing.T) {
	sm := NewStateMachine(NewDetector(0.1), 3)
	loud := pcmChunk(512, 12000)

	tr := sm.Feed(loud)
	require.True(t, tr.Started)
	require.True(t, tr.Recording)

	for i := 0; i < 100; i++ {
		tr = sm.Feed(loud)
		require.False(t, tr.Started, "segment must not reopen while continuously active")
		require.False(t, tr.Finalize, "segment must only close on silence or EOF")
	}
}

func TestStateMachineHysteresisSingleSegmentAcrossBriefSilence(t *testing.T) {
	// silence_duration=3s equivalent, expressed directly as chunk counts.
	sm := NewStateMachine(NewDetector(0.1), 3)
	loud := pcmChunk(512, 12000)
	quiet := pcmChunk(512, 0)

	require.True(t, sm.Feed(loud).Started)
	for i := 0; i < 4; i++ {
		require.False(t, sm.Feed(loud).Finalize)
	}
	// Brief silence shorter than the finalize threshold must not close the segment.
	require.False(t, sm.Feed(quiet).Finalize)
	require.False(t, sm.Feed(quiet).Finalize)
	// Voice resumes before the threshold is reached — still one segment.
	require.False(t, sm.Feed(loud).Finalize)
	require.True(t, sm.InRecording())
}

func TestSilenceChunksToFinish(t *testing.T) {
	require.Equal(t, 94, SilenceChunksToFinish(3.0, 31.25))
	require.Equal(t, 1, SilenceChunksToFinish(0, 31.25))
}

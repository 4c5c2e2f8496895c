package recorder

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps raw 16-bit PCM samples in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	buf := new(bytes.Buffer)
	blockAlign := uint16(channels * 2)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                        // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                         // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))                  // channels
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))                // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign)) // byte rate
	binary.Write(buf, binary.LittleEndian, blockAlign)                        // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                        // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DurationSeconds computes the playback duration of a raw PCM buffer.
func DurationSeconds(pcmLen, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSecond := sampleRate * channels * 2
	return float64(pcmLen) / float64(bytesPerSecond)
}

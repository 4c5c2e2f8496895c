// Package transcribe turns recorded WAV transmissions into text via a
// pluggable speech-to-text backend.
package transcribe

import "context"

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error)
	Name() string  // "whisper"
	Model() string // model identifier for logs
}

// Opts carries the tunables a provider may use; unsupported fields are
// ignored by providers that don't have an equivalent knob.
type Opts struct {
	Language string
	Prompt   string // domain hint, e.g. a short ATC phraseology primer
	BeamSize int
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Segments []Segment
}

// Segment is a timestamped span of text within a Response.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

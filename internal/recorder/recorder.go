// Package recorder implements the per-channel voice-activity-gated segment
// recorder: it spawns an external decoder process that turns a compressed
// audio stream into raw PCM, runs that PCM through a VAD state machine, and
// writes out one WAV file per detected transmission.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/storage"
	"github.com/atcfusion/engine/internal/vad"
)

// Segment is a finalized transmission, ready to be transcribed.
type Segment struct {
	Path              string
	ChannelID         string
	RecordedTimestamp time.Time
}

// Callback is invoked once per finalized segment.
type Callback func(Segment)

// Options configures a Recorder.
type Options struct {
	ChannelID             string
	Frequency             string
	StreamURL             string
	DecoderCommand        string // e.g. "ffmpeg"; empty uses the default
	SampleRate            int
	Channels              int
	VADThreshold          float64
	SilenceDuration       float64 // seconds
	MinTransmissionLength float64 // seconds; segments shorter than this are discarded unconditionally
	Store                 storage.AudioStore // where finalized WAV segments are written, keyed by {channel_id}/{filename}
	Callback              Callback
	Log                   zerolog.Logger
}

const chunkBytes = 1024 * 2 // 1024 samples * 2 bytes/sample at 16-bit mono PCM

// Recorder owns one channel's decoder process and VAD pipeline.
type Recorder struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	running bool
}

// New creates a Recorder for one channel. It does not start the decoder.
func New(opts Options) *Recorder {
	if opts.DecoderCommand == "" {
		opts.DecoderCommand = "ffmpeg"
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	log := opts.Log.With().Str("component", "recorder").Str("channel", opts.ChannelID).Logger()
	return &Recorder{opts: opts, log: log}
}

// Run spawns the decoder and blocks, feeding PCM through the VAD state
// machine until ctx is cancelled, the decoder exits, or a fatal decoder
// error occurs. It always terminates the decoder process before returning.
//
// Failure semantics: decoder not found or non-zero exit is channel-fatal
// (returned as an error, never panics); EOF finalizes any in-flight segment
// and returns nil once the decoder has exited cleanly; write failures are logged and the segment is discarded
// without blocking ingest.
func (r *Recorder) Run(ctx context.Context) error {
	stdout, cmd, err := r.startDecoder(ctx)
	if err != nil {
		return fmt.Errorf("channel %s: decoder start failed: %w", r.opts.ChannelID, err)
	}
	r.mu.Lock()
	r.cmd = cmd
	r.running = true
	r.mu.Unlock()

	defer r.terminateDecoder()

	detector := vad.NewDetector(r.opts.VADThreshold)
	chunksPerSecond := float64(r.opts.SampleRate) / float64(chunkBytes/2)
	silenceChunks := vad.SilenceChunksToFinish(r.opts.SilenceDuration, chunksPerSecond)
	sm := vad.NewStateMachine(detector, silenceChunks)

	var buf bytes.Buffer
	chunk := make([]byte, chunkBytes)

	r.log.Info().Str("stream_url", r.opts.StreamURL).Msg("listening for transmissions")

	for {
		select {
		case <-ctx.Done():
			r.finalizeIfAny(&buf, sm)
			return nil
		default:
		}

		n, readErr := io.ReadFull(stdout, chunk)
		if n > 0 {
			tr := sm.Feed(chunk[:n])
			if tr.Started {
				r.log.Debug().Msg("transmission detected")
				buf.Reset()
			}
			if tr.Recording {
				buf.Write(chunk[:n])
			}
			if tr.Finalize {
				r.finalize(buf.Bytes())
				buf.Reset()
			}
		}

		if readErr != nil {
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				r.log.Info().Msg("stream ended")
				r.finalizeIfAny(&buf, sm)
				if waitErr := cmd.Wait(); waitErr != nil && ctx.Err() == nil {
					return fmt.Errorf("channel %s: decoder exited: %w", r.opts.ChannelID, waitErr)
				}
				return nil
			}
			return fmt.Errorf("channel %s: stream read: %w", r.opts.ChannelID, readErr)
		}
	}
}

func (r *Recorder) finalizeIfAny(buf *bytes.Buffer, sm *vad.StateMachine) {
	if sm.InRecording() && buf.Len() > 0 {
		r.finalize(buf.Bytes())
	}
}

// finalize enforces the minimum segment length unconditionally, writes the
// WAV file, and invokes the callback.
func (r *Recorder) finalize(pcm []byte) {
	dur := DurationSeconds(len(pcm), r.opts.SampleRate, r.opts.Channels)
	if dur < r.opts.MinTransmissionLength {
		r.log.Debug().Float64("duration_s", dur).Msg("segment below minimum length, discarded")
		return
	}

	now := time.Now()
	key := r.segmentKey(now)
	wav := EncodeWAV(pcm, r.opts.SampleRate, r.opts.Channels)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := r.opts.Store.Save(ctx, key, wav, "audio/wav")
	cancel()
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("failed to write segment, discarding")
		return
	}

	path := r.opts.Store.LocalPath(key)
	if path == "" {
		r.log.Error().Str("key", key).Msg("audio store has no local copy, cannot queue for transcription")
		return
	}

	r.log.Info().Str("path", path).Float64("duration_s", dur).Msg("saved transmission")

	if r.opts.Callback != nil {
		r.opts.Callback(Segment{
			Path:              path,
			ChannelID:         r.opts.ChannelID,
			RecordedTimestamp: now,
		})
	}
}

// segmentKey returns the audio store key for a segment recorded at ts,
// {channel_id}/{filename} so every channel's segments live in their own
// prefix.
func (r *Recorder) segmentKey(ts time.Time) string {
	stamp := ts.Format("20060102_150405.000")
	stamp = strings.Replace(stamp, ".", "_", 1)
	freqPart := ""
	if r.opts.Frequency != "" {
		freqPart = "_" + strings.ReplaceAll(r.opts.Frequency, ".", "p")
	}
	name := fmt.Sprintf("transmission_%s%s.wav", stamp, freqPart)
	return filepath.ToSlash(filepath.Join(r.opts.ChannelID, name))
}

func (r *Recorder) startDecoder(ctx context.Context) (io.ReadCloser, *exec.Cmd, error) {
	args := []string{
		"-i", r.opts.StreamURL,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", r.opts.SampleRate),
		"-ac", fmt.Sprintf("%d", r.opts.Channels),
		"-",
	}
	cmd := exec.CommandContext(ctx, r.opts.DecoderCommand, args...)
	// On cancellation send SIGTERM instead of the default SIGKILL;
	// terminateDecoder escalates to SIGKILL after 2s.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.Stderr = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		if exec.ErrNotFound == err || isExecNotFound(err) {
			return nil, nil, fmt.Errorf("%s not found in PATH: %w", r.opts.DecoderCommand, err)
		}
		return nil, nil, err
	}
	return stdout, cmd, nil
}

func isExecNotFound(err error) bool {
	_, ok := err.(*exec.Error)
	return ok
}

// terminateDecoder stops the decoder process: SIGTERM, then SIGKILL after 2s
// if it hasn't exited.
func (r *Recorder) terminateDecoder() {
	r.mu.Lock()
	cmd := r.cmd
	r.running = false
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}

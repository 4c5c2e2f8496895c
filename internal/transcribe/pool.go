package transcribe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/model"
)

// Job is one recorded segment awaiting transcription.
type Job struct {
	ChannelID          string
	FrequencyMHz       string
	AudioPath          string
	RecordedAt         time.Time
	AudioDurationS     float64
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int
	Completed int64
	Failed    int64
}

// ResultFunc is invoked exactly once per accepted job, whether it succeeds or
// fails. On failure tx is the zero value and err is non-nil.
type ResultFunc func(job Job, tx model.Transmission, err error)

// PoolOptions configures the transcription worker pool.
type PoolOptions struct {
	Provider        Provider
	ProviderTimeout time.Duration
	Language        string
	Prompt          string
	Workers         int
	QueueSize       int
	MinDuration     float64
	MaxDuration     float64
	OnResult        ResultFunc
	Log             zerolog.Logger
}

// Pool runs a fixed number of transcription workers pulling from a bounded
// job queue and delivering each result through a single callback.
type Pool struct {
	jobs   chan Job
	opts   PoolOptions
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statusMu sync.Mutex
	busy     map[int]bool

	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a transcription worker pool. Call Start to launch workers.
func NewPool(opts PoolOptions) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:   make(chan Job, opts.QueueSize),
		opts:   opts,
		log:    opts.Log.With().Str("component", "transcribe-pool").Logger(),
		ctx:    ctx,
		cancel: cancel,
		busy:   make(map[int]bool),
	}
}

// SetOnResult sets the result callback. Must be called before Start; it
// exists to let the pool and its downstream consumer be constructed in
// either order without a circular dependency at construction time.
func (p *Pool) SetOnResult(fn ResultFunc) {
	p.opts.OnResult = fn
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.opts.Workers).Int("queue_size", p.opts.QueueSize).Msg("transcription pool started")
}

// Stop closes the queue, waits for in-flight jobs to finish, then returns.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
	p.log.Info().
		Int64("completed", p.completed.Load()).
		Int64("failed", p.failed.Load()).
		Msg("transcription pool stopped")
}

// Submit enqueues a job. It returns false without blocking if the queue is
// full, so callers can apply backpressure to the recorder instead of
// unbounded memory growth.
func (p *Pool) Submit(j Job) bool {
	if j.AudioDurationS < p.opts.MinDuration {
		p.log.Debug().Str("channel", j.ChannelID).Float64("duration_s", j.AudioDurationS).Msg("segment below minimum duration, discarding")
		return false
	}
	select {
	case p.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats reports current queue occupancy and lifetime counters.
func (p *Pool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(p.jobs),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// IsBusy reports whether worker id is currently processing a job, for
// worker_status events.
func (p *Pool) IsBusy(id int) bool {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	return p.busy[id]
}

func (p *Pool) setBusy(id int, busy bool) {
	p.statusMu.Lock()
	p.busy[id] = busy
	p.statusMu.Unlock()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for job := range p.jobs {
		p.setBusy(id, true)
		tx, err := p.process(log, job)
		p.setBusy(id, false)

		if err != nil {
			p.failed.Add(1)
			log.Warn().Err(err).Str("channel", job.ChannelID).Str("path", job.AudioPath).Msg("transcription failed")
		} else {
			p.completed.Add(1)
		}
		if p.opts.OnResult != nil {
			p.opts.OnResult(job, tx, err)
		}
	}
}

func (p *Pool) process(log zerolog.Logger, job Job) (model.Transmission, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.opts.ProviderTimeout)
	defer cancel()

	cappedDuration := job.AudioDurationS
	if p.opts.MaxDuration > 0 && cappedDuration > p.opts.MaxDuration {
		log.Warn().Float64("duration_s", cappedDuration).Msg("segment exceeds maximum duration, transcribing anyway")
	}

	resp, err := p.opts.Provider.Transcribe(ctx, job.AudioPath, Opts{
		Language: p.opts.Language,
		Prompt:   p.opts.Prompt,
	})
	if err != nil {
		return model.Transmission{}, fmt.Errorf("%s: %w", p.opts.Provider.Name(), err)
	}

	text := strings.TrimSpace(resp.Text)
	segments := make([]model.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, model.Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}

	duration := job.AudioDurationS
	if resp.Duration > 0 {
		duration = resp.Duration
	}

	return model.Transmission{
		ChannelID:          job.ChannelID,
		FrequencyMHz:       job.FrequencyMHz,
		TranscribedAt:      time.Now(),
		Segments:           segments,
		Text:               text,
		AudioDurationS:     duration,
		TranscriptionDelay: time.Since(start),
	}, nil
}

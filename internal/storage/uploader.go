package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AsyncUploader carries the S3 copy of a segment or transcript off the
// caller's goroutine. TieredStore.Save enqueues here only after the local
// disk write has already succeeded, so a dropped or failed job never loses
// data — the upload reconciler finds it again on its next sweep.
type AsyncUploader struct {
	s3       *S3Store
	ch       chan uploadJob
	workers  int
	log      zerolog.Logger
	stopped  atomic.Bool
	stopOnce sync.Once
}

const (
	defaultUploaderWorkers = 4
	uploadQueueSize        = 256
)

type uploadJob struct {
	key         string
	data        []byte
	contentType string
}

// NewAsyncUploader creates an async S3 uploader. bufferSize bounds how many
// pending uploads can queue before Enqueue starts dropping work, and workers
// is the number of goroutines Start launches to drain the queue.
func NewAsyncUploader(s3 *S3Store, bufferSize int, log zerolog.Logger) *AsyncUploader {
	return &AsyncUploader{
		s3:      s3,
		ch:      make(chan uploadJob, bufferSize),
		workers: defaultUploaderWorkers,
		log:     log.With().Str("component", "async-uploader").Logger(),
	}
}

// Enqueue schedules key for upload to S3. It never blocks: if the queue is
// full or the uploader has been stopped, the job is dropped and the key
// remains on local disk for the reconciler to pick up later.
func (u *AsyncUploader) Enqueue(key string, data []byte, contentType string) {
	if u.stopped.Load() {
		return
	}
	job := uploadJob{key: key, data: data, contentType: contentType}
	select {
	case u.ch <- job:
	default:
		u.log.Warn().Str("key", key).Msg("async upload queue full, leaving for reconciler")
	}
}

// Start launches the uploader's worker goroutines. Satisfies BackgroundService.
func (u *AsyncUploader) Start() {
	for i := 0; i < u.workers; i++ {
		go u.worker()
	}
	u.log.Info().Int("workers", u.workers).Int("buffer", cap(u.ch)).Msg("async uploader started")
}

// Stop signals workers to drain the remaining queue and return. Satisfies BackgroundService.
func (u *AsyncUploader) Stop() {
	u.stopped.Store(true)
	u.stopOnce.Do(func() { close(u.ch) })
}

func (u *AsyncUploader) worker() {
	for job := range u.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := u.s3.Save(ctx, job.key, job.data, job.contentType); err != nil {
			u.log.Error().Err(err).Str("key", job.key).Msg("async S3 upload failed (file safe in cache)")
		}
		cancel()
	}
}

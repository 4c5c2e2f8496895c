package transcribe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/model"
)

type fakeProvider struct {
	text string
	err  error
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Text: p.text, Duration: 2.5}, nil
}

func TestPoolInvokesCallbackExactlyOncePerJob(t *testing.T) {
	var mu sync.Mutex
	results := map[string]int{}

	pool := NewPool(PoolOptions{
		Provider:        &fakeProvider{text: "cleared for takeoff"},
		ProviderTimeout: time.Second,
		Workers:         2,
		QueueSize:       10,
		MinDuration:     0,
		OnResult: func(job Job, tx model.Transmission, err error) {
			mu.Lock()
			results[job.AudioPath]++
			mu.Unlock()
		},
		Log: zerolog.Nop(),
	})
	pool.Start()

	paths := []string{"a.wav", "b.wav", "c.wav"}
	for _, p := range paths {
		if !pool.Submit(Job{ChannelID: "twr", AudioPath: p, AudioDurationS: 3}) {
			t.Fatalf("expected submit of %s to succeed", p)
		}
	}
	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	for _, p := range paths {
		if results[p] != 1 {
			t.Errorf("expected exactly 1 callback for %s, got %d", p, results[p])
		}
	}
}

func TestPoolDiscardsJobsBelowMinimumDuration(t *testing.T) {
	pool := NewPool(PoolOptions{
		Provider:    &fakeProvider{text: "x"},
		Workers:     1,
		QueueSize:   10,
		MinDuration: 1.0,
		Log:         zerolog.Nop(),
	})
	if pool.Submit(Job{ChannelID: "twr", AudioPath: "short.wav", AudioDurationS: 0.2}) {
		t.Fatal("expected short segment to be rejected")
	}
}

func TestPoolReportsFailureViaCallback(t *testing.T) {
	done := make(chan error, 1)
	pool := NewPool(PoolOptions{
		Provider:        &fakeProvider{err: context.DeadlineExceeded},
		ProviderTimeout: time.Second,
		Workers:         1,
		QueueSize:       1,
		OnResult: func(job Job, tx model.Transmission, err error) {
			done <- err
		},
		Log: zerolog.Nop(),
	})
	pool.Start()
	pool.Submit(Job{ChannelID: "twr", AudioPath: "a.wav", AudioDurationS: 3})

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error to be reported")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for callback")
	}
	pool.Stop()

	stats := pool.Stats()
	if stats.Failed != 1 {
		t.Fatalf("expected 1 failed job, got %d", stats.Failed)
	}
}

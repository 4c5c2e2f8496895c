package monitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/eventbus"
	"github.com/atcfusion/engine/internal/model"
	"github.com/atcfusion/engine/internal/recorder"
	"github.com/atcfusion/engine/internal/transcribe"
)

func newTestMonitor(t *testing.T) (*Monitor, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(64)
	pool := transcribe.NewPool(transcribe.PoolOptions{Workers: 1, QueueSize: 4, Log: zerolog.Nop()})
	m := New(Options{
		Channels:        []ChannelConfig{{Name: "twr", Frequency: "118.3"}},
		RecorderOptions: func(cc ChannelConfig) recorder.Options { return recorder.Options{} },
		Pool:            pool,
		Bus:             bus,
		HistoryCap:      10,
		Log:             zerolog.Nop(),
	})
	return m, bus
}

func TestOnTranscriptionResultAppendsToChannelHistoryAndPublishes(t *testing.T) {
	m, bus := newTestMonitor(t)
	sub, cancel := bus.Subscribe(16)
	defer cancel()

	tx := model.Transmission{ChannelID: "twr", Text: "cleared for takeoff", TranscribedAt: time.Now()}
	m.OnTranscriptionResult(transcribe.Job{ChannelID: "twr"}, tx, nil)

	cs, ok := m.channels.get("twr")
	if !ok {
		t.Fatal("expected twr channel to exist")
	}
	if len(cs.channel.History) != 1 {
		t.Fatalf("expected 1 transmission in history, got %d", len(cs.channel.History))
	}
	if cs.channel.Stats.TransmissionsTranscribed != 1 {
		t.Fatalf("expected transcribed count to increment, got %d", cs.channel.Stats.TransmissionsTranscribed)
	}

	sawTx := false
	timeout := time.After(time.Second)
	for !sawTx {
		select {
		case e := <-sub:
			if e.Kind == eventbus.KindATCTransmission {
				sawTx = true
			}
		case <-timeout:
			t.Fatal("timed out waiting for atc_transmission event")
		}
	}
}

func TestOnTranscriptionResultSkipsEmptyText(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.OnTranscriptionResult(transcribe.Job{ChannelID: "twr"}, model.Transmission{ChannelID: "twr", Text: ""}, nil)

	cs, _ := m.channels.get("twr")
	if len(cs.channel.History) != 0 {
		t.Fatalf("expected empty transcription to be skipped, got %d entries", len(cs.channel.History))
	}
}

func TestOnTranscriptionResultLogsFailureWithoutPanicking(t *testing.T) {
	m, _ := newTestMonitor(t)
	m.OnTranscriptionResult(transcribe.Job{ChannelID: "twr"}, model.Transmission{}, errTranscriptionFailed)

	cs, _ := m.channels.get("twr")
	if len(cs.channel.History) != 0 {
		t.Fatalf("expected no history entry on failure, got %d", len(cs.channel.History))
	}
}

func TestRingAppendCapsHistoryLength(t *testing.T) {
	cs := &channelState{channel: model.Channel{Name: "twr"}}
	for i := 0; i < 5; i++ {
		ringAppend(cs, model.Transmission{Text: "x"}, 3)
	}
	if len(cs.channel.History) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(cs.channel.History))
	}
}

var errTranscriptionFailed = &testError{"transcription failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

// Package monitor owns the lifecycle of one ATC fusion run: it wires
// per-channel recorders to the transcription pool, transcripts to the
// correlator, and correlator output to the event bus.
package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/correlator"
	"github.com/atcfusion/engine/internal/eventbus"
	"github.com/atcfusion/engine/internal/model"
	"github.com/atcfusion/engine/internal/recorder"
	"github.com/atcfusion/engine/internal/storage"
	"github.com/atcfusion/engine/internal/surveillance"
	"github.com/atcfusion/engine/internal/transcribe"
)

// ChannelConfig describes one monitored radio frequency.
type ChannelConfig struct {
	Name      string
	Frequency string
	StreamURL string
	Color     string
}

// Options configures a Monitor.
type Options struct {
	Channels          []ChannelConfig
	RecorderOptions   func(ChannelConfig) recorder.Options // factory; ChannelID/Frequency/StreamURL/Callback are then overwritten by runChannel
	Pool              *transcribe.Pool
	Poller            *surveillance.Poller // nil disables surveillance; correlation then runs with no contacts
	Correlator        *correlator.Correlator // nil disables correlation
	Bus               *eventbus.Bus
	TranscriptStore   storage.AudioStore // nil disables transcript persistence
	HistoryCap        int // per-channel ring buffer cap, generously above the correlator's window
	CorrelationWindow int // H' passed to Correlator.Correlate
	SampleRate    int // PCM sample rate used by every recorder, for WAV duration computation
	AudioChannels int // PCM channel count used by every recorder
	Log           zerolog.Logger
}

// Monitor is the coordinator: it owns every component's lifecycle and is the
// sole holder of the cancellation context.
type Monitor struct {
	opts     Options
	log      zerolog.Logger
	channels *channelTable

	alertCounts sync.Map // never written; the NON_TRANSPONDER tally is kept in each channel's Stats.AlertCount

	statsBatcher *eventbus.Batcher[model.Transmission]
}

// New creates a Monitor. Call Run to start all components.
func New(opts Options) *Monitor {
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 100
	}
	m := &Monitor{
		opts:     opts,
		log:      opts.Log.With().Str("component", "monitor").Logger(),
		channels: newChannelTable(),
	}
	for _, cc := range opts.Channels {
		m.channels.add(model.Channel{Name: cc.Name, Frequency: cc.Frequency, StreamURL: cc.StreamURL, Color: cc.Color})
	}
	if opts.Bus != nil {
		m.statsBatcher = eventbus.NewBatcher[model.Transmission](20, 500*time.Millisecond, m.flushTransmissionBatch)
	}
	return m
}

// Run starts every recorder, the transcription pool, the surveillance
// poller, and the stats sampler, and blocks until ctx is canceled, at which
// point it drains every component in turn before returning.
func (m *Monitor) Run(ctx context.Context) error {
	m.opts.Pool.Start()
	defer m.opts.Pool.Stop()

	if m.opts.Bus != nil {
		m.opts.Bus.Publish(eventbus.KindChannelsInitialized, "", m.channelNames())
	}

	var wg sync.WaitGroup

	for _, cc := range m.opts.Channels {
		cc := cc
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.runChannel(ctx, cc)
		}()
	}

	if m.opts.Poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.opts.Poller.Run(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn().Err(err).Msg("surveillance poller exited")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.statsLoop(ctx)
	}()

	<-ctx.Done()
	m.log.Info().Msg("shutdown requested, draining")
	wg.Wait()

	if m.statsBatcher != nil {
		m.statsBatcher.Stop()
	}
	m.log.Info().Msg("all components stopped")
	return nil
}

func (m *Monitor) channelNames() []string {
	names := make([]string, 0, len(m.opts.Channels))
	for _, c := range m.opts.Channels {
		names = append(names, c.Name)
	}
	return names
}

func (m *Monitor) runChannel(ctx context.Context, cc ChannelConfig) {
	opts := m.opts.RecorderOptions(cc)
	opts.ChannelID = cc.Name
	opts.Frequency = cc.Frequency
	opts.StreamURL = cc.StreamURL
	opts.Callback = func(seg recorder.Segment) {
		m.onSegment(cc, seg)
	}

	rec := recorder.New(opts)
	if m.opts.Bus != nil {
		m.opts.Bus.Publish(eventbus.KindChannelRecording, cc.Name, map[string]any{"status": "started"})
	}
	if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
		m.log.Error().Err(err).Str("channel", cc.Name).Msg("channel recorder exited with error")
	}
}

func (m *Monitor) onSegment(cc ChannelConfig, seg recorder.Segment) {
	if cs, ok := m.channels.get(cc.Name); ok {
		m.channels.mu.Lock()
		cs.channel.Stats.TransmissionsRecorded++
		m.channels.mu.Unlock()
	}

	accepted := m.opts.Pool.Submit(transcribe.Job{
		ChannelID:      cc.Name,
		FrequencyMHz:   cc.Frequency,
		AudioPath:      seg.Path,
		RecordedAt:     seg.RecordedTimestamp,
		AudioDurationS: m.wavDuration(seg.Path),
	})
	if !accepted {
		m.log.Warn().Str("channel", cc.Name).Str("path", seg.Path).Msg("transcription queue full or segment rejected, dropping")
	}
}

// wavDuration computes a segment's audio duration from its file size and the
// configured PCM format, avoiding a full WAV header parse since every
// segment was written by our own recorder.EncodeWAV with a fixed 44-byte
// header.
func (m *Monitor) wavDuration(path string) float64 {
	const wavHeaderBytes = 44
	info, err := os.Stat(path)
	if err != nil || info.Size() <= wavHeaderBytes {
		return 0
	}
	return recorder.DurationSeconds(int(info.Size())-wavHeaderBytes, m.opts.SampleRate, m.opts.AudioChannels)
}

// OnTranscriptionResult is wired as the transcription pool's ResultFunc: it
// persists the transcript, publishes it to the event bus, appends it to the
// channel's rolling history, and triggers a correlation pass.
func (m *Monitor) OnTranscriptionResult(job transcribe.Job, tx model.Transmission, err error) {
	if m.opts.Bus != nil {
		status := "idle"
		m.opts.Bus.Publish(eventbus.KindWorkerStatus, job.ChannelID, map[string]any{"status": status})
	}

	if err != nil {
		m.log.Warn().Err(err).Str("channel", job.ChannelID).Msg("transcription failed, dropping unit")
		return
	}
	if tx.Text == "" {
		return
	}

	m.saveTranscript(job, tx)

	if m.opts.Bus != nil {
		m.opts.Bus.Publish(eventbus.KindATCTransmission, job.ChannelID, tx)
	}

	cs, ok := m.channels.get(job.ChannelID)
	if !ok {
		return
	}
	m.channels.mu.Lock()
	ringAppend(cs, tx, m.opts.HistoryCap)
	m.channels.mu.Unlock()

	m.correlate(job.ChannelID)
}

func (m *Monitor) saveTranscript(job transcribe.Job, tx model.Transmission) {
	if m.opts.TranscriptStore == nil {
		return
	}
	base := filepath.Base(job.AudioPath)
	name := base[:len(base)-len(filepath.Ext(base))] + ".json"
	key := filepath.ToSlash(filepath.Join(job.ChannelID, name))

	data, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to marshal transcript")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.opts.TranscriptStore.Save(ctx, key, data, "application/json"); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("failed to write transcript artifact")
	}
}

func (m *Monitor) correlate(channelID string) {
	if m.opts.Correlator == nil {
		return
	}

	window := m.opts.CorrelationWindow
	if window <= 0 {
		window = 25
	}
	recent := m.channels.recentHistory(window)

	var contacts []model.Contact
	if m.opts.Poller != nil {
		if snap := m.opts.Poller.Snapshot(); snap != nil {
			contacts = snap.Contacts
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Second)
	defer cancel()

	result := m.opts.Correlator.Correlate(ctx, contacts, recent)
	if result.Error != "" {
		m.log.Warn().Str("error", result.Error).Msg("correlation failed")
		return
	}

	for _, corr := range result.Correlations {
		m.log.Info().
			Str("extracted", corr.ExtractedIdentifier).
			Str("matched_icao", corr.MatchedICAO).
			Str("matched_callsign", corr.MatchedCallsign).
			Float64("confidence", corr.MatchConfidence).
			Msg("correlation")
	}

	for _, alert := range result.Alerts {
		if m.opts.Bus != nil {
			m.opts.Bus.Publish(eventbus.KindAlert, channelID, alert)
		}
		if alert.Type == model.AlertNonTransponder {
			m.incrementAlertCount(channelID)
		}
	}
}

func (m *Monitor) incrementAlertCount(channelID string) {
	if cs, ok := m.channels.get(channelID); ok {
		m.channels.mu.Lock()
		cs.channel.Stats.AlertCount++
		m.channels.mu.Unlock()
	}
}

func (m *Monitor) flushTransmissionBatch(txs []model.Transmission) {
	if m.opts.Bus == nil || len(txs) == 0 {
		return
	}
	m.opts.Bus.Publish(eventbus.KindATCTransmission, "", txs)
}

func (m *Monitor) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logFinalStats()
			return
		case <-ticker.C:
			m.publishStats()
		}
	}
}

func (m *Monitor) publishStats() {
	if m.opts.Bus == nil {
		return
	}
	channels := m.channels.snapshot()
	m.opts.Bus.Publish(eventbus.KindStatsUpdate, "", channels)

	if m.opts.Poller != nil {
		if snap := m.opts.Poller.Snapshot(); snap != nil {
			m.opts.Bus.Publish(eventbus.KindUpdateAircraft, "", snap.Contacts)
		}
	}
}

func (m *Monitor) logFinalStats() {
	channels := m.channels.snapshot()
	var recorded, transcribed, alerts int
	for _, c := range channels {
		recorded += c.Stats.TransmissionsRecorded
		transcribed += c.Stats.TransmissionsTranscribed
		alerts += c.Stats.AlertCount
	}
	stats := m.opts.Pool.Stats()
	m.log.Info().
		Int("transmissions_recorded", recorded).
		Int("transmissions_transcribed", transcribed).
		Int("alerts", alerts).
		Int64("transcription_completed", stats.Completed).
		Int64("transcription_failed", stats.Failed).
		Msg("final statistics")
}

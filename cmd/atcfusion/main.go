package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atcfusion/engine/internal/config"
	"github.com/atcfusion/engine/internal/correlator"
	"github.com/atcfusion/engine/internal/debugapi"
	"github.com/atcfusion/engine/internal/eventbus"
	"github.com/atcfusion/engine/internal/metrics"
	"github.com/atcfusion/engine/internal/monitor"
	"github.com/atcfusion/engine/internal/recorder"
	"github.com/atcfusion/engine/internal/storage"
	"github.com/atcfusion/engine/internal/surveillance"
	"github.com/atcfusion/engine/internal/transcribe"
)

// version, commit, and buildTime are injected at build time via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var overrides config.Overrides
	var runMonitor bool
	var durationSeconds int
	var showVersion bool

	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default: .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "Audio segment directory (overrides AUDIO_DIR)")
	flag.StringVar(&overrides.TranscriptDir, "transcript-dir", "", "Transcript output directory (overrides TRANSCRIPT_DIR)")
	flag.Float64Var(&overrides.VADThreshold, "vad-threshold", 0, "Voice activity detection threshold (overrides VAD_THRESHOLD)")
	flag.Float64Var(&overrides.SilenceDuration, "silence-duration", 0, "Seconds of silence that finalizes a segment (overrides SILENCE_DURATION)")
	flag.StringVar(&overrides.StreamURL, "stream-url", "", "Audio stream URL for the monitored channel")
	flag.BoolVar(&overrides.SystemAudio, "system-audio", false, "Run one channel named \"system\" with an empty stream URL (no audio-device capture is set up)")
	flag.BoolVar(&runMonitor, "monitor", false, "Start monitoring (required to run)")
	flag.IntVar(&durationSeconds, "duration", 0, "Stop automatically after this many seconds (0 = run until signaled)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s (commit=%s, built=%s)\n", version, commit, buildTime)
		os.Exit(0)
	}
	if !runMonitor {
		fmt.Fprintln(os.Stderr, "nothing to do: pass --monitor to start")
		os.Exit(1)
	}

	startTime := time.Now()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", buildTime).
		Msg("atc fusion engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if durationSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(durationSeconds)*time.Second)
		defer cancel()
	}

	store, bgServices, err := storage.New(cfg.S3, cfg.AudioDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}
	for _, svc := range bgServices {
		svc.Start()
		defer svc.Stop()
	}
	log.Info().Str("type", store.Type()).Msg("audio storage initialized")

	bus := eventbus.New(cfg.EventBusRingSize)

	var poller *surveillance.Poller
	if cfg.EnableADSB {
		source, err := buildSurveillanceSource(cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize surveillance source")
		}
		rateLimit := surveillance.RateLimitAnonymous
		if cfg.OpenSkyCredentialsFile != "" {
			rateLimit = surveillance.RateLimitAuthenticated
		}
		poller = surveillance.NewPoller(source, cfg.AirportLat, cfg.AirportLon, cfg.SearchRadiusNM, rateLimit,
			log.With().Str("component", "surveillance").Logger())
	} else {
		log.Info().Msg("ADS-B surveillance disabled")
	}

	var corr *correlator.Correlator
	if cfg.EnableLLMCorrelation {
		client := correlator.NewClient(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaRequestTimeout)
		corr = correlator.New(correlator.Options{
			Client: client,
			Budget: correlator.Budget{
				ContextWindow: 8192,
				MaxResponse:   2048,
				MaxContacts:   cfg.LLMMaxADSBContacts,
				MaxTx:         cfg.LLMMaxTransmissions,
			},
			AlertConfidenceThreshold: cfg.AlertConfidenceThreshold,
			Log:                      log.With().Str("component", "correlator").Logger(),
		})
		log.Info().Str("model", cfg.OllamaModel).Str("base_url", cfg.OllamaBaseURL).Msg("LLM correlation enabled")
	} else {
		log.Info().Msg("LLM correlation disabled")
	}

	var provider transcribe.Provider
	if cfg.WhisperURL != "" {
		provider = transcribe.NewWhisperProvider(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel, cfg.WhisperTimeout)
	}

	pool := transcribe.NewPool(transcribe.PoolOptions{
		Provider:        provider,
		ProviderTimeout: cfg.WhisperTimeout,
		Workers:         cfg.NumTranscriptionWorkers,
		QueueSize:       cfg.TranscribeQueueSize,
		MinDuration:     cfg.TranscribeMinDuration,
		MaxDuration:     cfg.TranscribeMaxDuration,
		Log:             log.With().Str("component", "transcribe").Logger(),
	})

	channels := buildChannels(cfg, overrides)

	var transcriptStore storage.AudioStore
	if cfg.TranscriptDir != "" {
		transcriptStore = storage.NewLocalStore(cfg.TranscriptDir)
	}

	mon := monitor.New(monitor.Options{
		Channels: channels,
		RecorderOptions: func(cc monitor.ChannelConfig) recorder.Options {
			return recorder.Options{
				DecoderCommand:        cfg.DecoderCommand,
				SampleRate:            cfg.SampleRate,
				Channels:              cfg.Channels,
				VADThreshold:          cfg.VADThreshold,
				SilenceDuration:       cfg.SilenceDuration,
				MinTransmissionLength: cfg.MinTransmissionLength,
				Store:                 store,
				Log:                   log.With().Str("component", "recorder").Str("channel", cc.Name).Logger(),
			}
		},
		Pool:              pool,
		Poller:            poller,
		Correlator:        corr,
		Bus:               bus,
		TranscriptStore:   transcriptStore,
		HistoryCap:        3 * cfg.LLMMaxTransmissions,
		CorrelationWindow: cfg.CorrelationWindow,
		SampleRate:        cfg.SampleRate,
		AudioChannels:     cfg.Channels,
		Log:               log,
	})
	pool.SetOnResult(mon.OnTranscriptionResult)

	var debugSrv *debugapi.Server
	if cfg.DebugHTTPAddr != "" {
		// poller and corr are typed nil when disabled; only wrap them in the
		// debug server's interfaces when a concrete instance actually exists,
		// since a typed-nil-in-interface compares non-nil.
		var pollerStatus debugapi.PollerStatus
		if poller != nil {
			pollerStatus = poller
		}
		var corrStats metrics.CorrelatorStatter
		if corr != nil {
			corrStats = corr
		}
		debugSrv = debugapi.New(debugapi.Options{
			Addr:               cfg.DebugHTTPAddr,
			Poller:             pollerStatus,
			Pool:               pool,
			Correlator:         corrStats,
			SubscriberCount:    bus.SubscriberCount,
			CorrelationEnabled: cfg.EnableLLMCorrelation,
			Version:            version,
			StartTime:          startTime,
			Log:                log,
		})
		go func() {
			if err := debugSrv.Start(); err != nil {
				log.Error().Err(err).Msg("debug http server error")
			}
		}()
	}

	log.Info().Dur("startup_ms", time.Since(startTime)).Msg("atc fusion engine ready")

	if err := mon.Run(ctx); err != nil {
		log.Error().Err(err).Msg("monitor exited with error")
	}

	if debugSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debugSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("debug http server shutdown error")
		}
	}

	log.Info().Msg("atc fusion engine stopped")
}

func buildSurveillanceSource(cfg *config.Config, log zerolog.Logger) (surveillance.Source, error) {
	switch cfg.ADSBSource {
	case "local":
		return surveillance.NewLocalSource(cfg.LocalADSBURL), nil
	case "adsbexchange":
		return surveillance.NewAdsbExchangeSource(""), nil
	case "opensky", "":
		creds, err := surveillance.LoadCredentials(cfg.OpenSkyCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("load opensky credentials: %w", err)
		}
		return surveillance.NewOpenSky(creds, log), nil
	default:
		return nil, fmt.Errorf("unknown ADSB_SOURCE %q (valid: opensky, adsbexchange, local)", cfg.ADSBSource)
	}
}

func buildChannels(cfg *config.Config, overrides config.Overrides) []monitor.ChannelConfig {
	if overrides.SystemAudio {
		return []monitor.ChannelConfig{{Name: "system", Frequency: "0.0", StreamURL: ""}}
	}
	return []monitor.ChannelConfig{{Name: "monitor", Frequency: "0.0", StreamURL: overrides.StreamURL}}
}

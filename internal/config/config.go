package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every recognized option for the fusion engine, loaded from
// environment variables (with struct-tag defaults) and an optional .env file.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Audio capture
	SampleRate            int     `env:"SAMPLE_RATE" envDefault:"16000"`
	Channels              int     `env:"CHANNELS" envDefault:"1"`
	VADThreshold          float64 `env:"VAD_THRESHOLD" envDefault:"0.1"`
	SilenceDuration       float64 `env:"SILENCE_DURATION" envDefault:"3.0"`
	MinTransmissionLength float64 `env:"MIN_TRANSMISSION_LENGTH" envDefault:"1.0"`
	DecoderCommand        string  `env:"DECODER_COMMAND" envDefault:"ffmpeg"`

	AudioDir      string `env:"AUDIO_DIR" envDefault:"./audio"`
	TranscriptDir string `env:"TRANSCRIPT_DIR" envDefault:"./transcripts"`

	// Transcription
	ModelSize               string  `env:"MODEL_SIZE" envDefault:"large"`
	NumTranscriptionWorkers int     `env:"NUM_TRANSCRIPTION_WORKERS" envDefault:"3"`
	TranscribeQueueSize     int     `env:"TRANSCRIBE_QUEUE_SIZE" envDefault:"100"`
	TranscribeMinDuration   float64 `env:"TRANSCRIBE_MIN_DURATION" envDefault:"1.0"`
	TranscribeMaxDuration   float64 `env:"TRANSCRIBE_MAX_DURATION" envDefault:"300"`
	WhisperURL              string  `env:"WHISPER_URL"`
	WhisperAPIKey           string  `env:"WHISPER_API_KEY"`
	WhisperModel            string  `env:"WHISPER_MODEL"`
	WhisperTimeout          time.Duration `env:"WHISPER_TIMEOUT" envDefault:"30s"`

	// ADS-B surveillance
	EnableADSB            bool    `env:"ENABLE_ADSB" envDefault:"true"`
	ADSBSource            string  `env:"ADSB_SOURCE" envDefault:"opensky"` // opensky, adsbexchange, local
	OpenSkyCredentialsFile string `env:"OPENSKY_CREDENTIALS_FILE"`
	LocalADSBURL          string  `env:"LOCAL_ADSB_URL" envDefault:"http://localhost:8080"`
	AirportLat            float64 `env:"AIRPORT_LAT"`
	AirportLon            float64 `env:"AIRPORT_LON"`
	SearchRadiusNM        float64 `env:"SEARCH_RADIUS_NM" envDefault:"40"`

	// LLM correlation
	EnableLLMCorrelation bool          `env:"ENABLE_LLM_CORRELATION" envDefault:"true"`
	OllamaModel          string        `env:"OLLAMA_MODEL" envDefault:"gpt-oss:20b"`
	OllamaBaseURL        string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaRequestTimeout time.Duration `env:"OLLAMA_REQUEST_TIMEOUT" envDefault:"220s"`
	LLMMaxADSBContacts   int           `env:"LLM_MAX_ADSB_CONTACTS" envDefault:"100"`
	LLMMaxTransmissions  int           `env:"LLM_MAX_TRANSMISSIONS" envDefault:"25"`
	CorrelationWindow    int           `env:"CORRELATION_WINDOW" envDefault:"10"`
	AltitudeTolerance    int           `env:"ALTITUDE_TOLERANCE" envDefault:"500"`
	PositionTolerance    float64       `env:"POSITION_TOLERANCE" envDefault:"5"`
	AlertConfidenceThreshold float64   `env:"ALERT_CONFIDENCE_THRESHOLD" envDefault:"0.7"`

	// Event bus
	EventBusRingSize   int           `env:"EVENT_BUS_RING_SIZE" envDefault:"4096"`
	EventBusSoftCap    int           `env:"EVENT_BUS_SOFT_CAP" envDefault:"100"`
	BatchMinInterval   time.Duration `env:"BATCH_MIN_INTERVAL" envDefault:"500ms"`
	BatchMaxSize       int           `env:"BATCH_MAX_SIZE" envDefault:"20"`

	// Optional debug HTTP surface (health/metrics); empty disables it.
	DebugHTTPAddr string `env:"DEBUG_HTTP_ADDR"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional S3 archival tier for audio/transcript
// artifacts. Enabled() reports whether S3 archival should be attempted.
type S3Config struct {
	Bucket         string        `env:"BUCKET"`
	Region         string        `env:"REGION" envDefault:"us-east-1"`
	Endpoint       string        `env:"ENDPOINT"`
	AccessKey      string        `env:"ACCESS_KEY"`
	SecretKey      string        `env:"SECRET_KEY"`
	Prefix         string        `env:"PREFIX"`
	LocalCache     bool          `env:"LOCAL_CACHE" envDefault:"true"`
	CacheRetention time.Duration `env:"CACHE_RETENTION" envDefault:"0"`
	CacheMaxGB     int           `env:"CACHE_MAX_GB" envDefault:"0"`
	UploadMode     string        `env:"UPLOAD_MODE" envDefault:"sync"` // sync, async
	PresignExpiry  time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over environment variables.
type Overrides struct {
	EnvFile         string
	LogLevel        string
	AudioDir        string
	TranscriptDir   string
	VADThreshold    float64
	SilenceDuration float64
	StreamURL       string // used by main to build the initial channel set
	SystemAudio     bool
}

// Validate checks invariants that can't be expressed as struct defaults.
func (c *Config) Validate() error {
	if c.EnableADSB && c.AirportLat == 0 && c.AirportLon == 0 {
		return fmt.Errorf("ENABLE_ADSB=true requires AIRPORT_LAT and AIRPORT_LON")
	}
	if c.SearchRadiusNM <= 0 {
		return fmt.Errorf("SEARCH_RADIUS_NM must be positive")
	}
	return nil
}

// Load reads configuration from an optional .env file, environment
// variables, and CLI overrides. Priority: CLI flags > environment variables
// > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.TranscriptDir != "" {
		cfg.TranscriptDir = overrides.TranscriptDir
	}
	if overrides.VADThreshold > 0 {
		cfg.VADThreshold = overrides.VADThreshold
	}
	if overrides.SilenceDuration > 0 {
		cfg.SilenceDuration = overrides.SilenceDuration
	}

	return cfg, nil
}

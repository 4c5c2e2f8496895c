package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "./audio", cfg.AudioDir)
	require.Equal(t, 16000, cfg.SampleRate)
	require.Equal(t, 1, cfg.Channels)
	require.InDelta(t, 0.1, cfg.VADThreshold, 0.0001)
	require.InDelta(t, 3.0, cfg.SilenceDuration, 0.0001)
	require.Equal(t, 3, cfg.NumTranscriptionWorkers)
	require.False(t, cfg.S3.Enabled())
}

func TestLoadCLIOverridesTakePriority(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	cfg, err := Load(Overrides{
		EnvFile:  "nonexistent.env",
		LogLevel: "debug",
		AudioDir: "/tmp/audio",
	})
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/tmp/audio", cfg.AudioDir)
}

func TestLoadEnvVarsRead(t *testing.T) {
	t.Setenv("AIRPORT_LAT", "44.88")
	t.Setenv("AIRPORT_LON", "-93.22")
	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	require.NoError(t, err)
	require.InDelta(t, 44.88, cfg.AirportLat, 0.0001)
	require.InDelta(t, -93.22, cfg.AirportLon, 0.0001)
}

func TestValidateRequiresAirportCoordinatesWhenADSBEnabled(t *testing.T) {
	cfg := &Config{EnableADSB: true, SearchRadiusNM: 40}
	require.Error(t, cfg.Validate())

	cfg.AirportLat = 44.88
	cfg.AirportLon = -93.22
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveRadius(t *testing.T) {
	cfg := &Config{SearchRadiusNM: 0}
	require.Error(t, cfg.Validate())
}

func TestS3ConfigPrefixedEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "atc-archive")
	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	require.NoError(t, err)
	require.True(t, cfg.S3.Enabled())
	require.Equal(t, "atc-archive", cfg.S3.Bucket)
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

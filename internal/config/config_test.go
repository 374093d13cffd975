package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, "wav", cfg.Extension)
	assert.Equal(t, filepath.Join("config", "engine.json"), cfg.ConfigPath)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Engine.FailClosed)
	assert.Equal(t, 0.8, cfg.Engine.FingerprintConfidence)
	assert.Equal(t, 0.9, cfg.Engine.InputConfidence)
	assert.Equal(t, 3, cfg.Probe.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Probe.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.ProbeSampleDuration())
	assert.Equal(t, int64(1<<20), cfg.Probe.MaxBytes)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROOT_UPLOAD_DIR", "/srv/ads")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "ads")
	t.Setenv("DATABASE", "adverts")
	t.Setenv("ENGINE_FAIL_CLOSED", "true")

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/ads", cfg.UploadDir)
	assert.True(t, cfg.Engine.FailClosed)

	doc := cfg.EngineDocument()
	assert.Equal(t, "postgres", doc.DatabaseType)
	assert.Equal(t, "db.internal", doc.Database.Host)
	assert.Equal(t, "ads", doc.Database.User)
	assert.Equal(t, "adverts", doc.Database.Database)
	assert.Equal(t, 11025, doc.Fingerprint.SampleRate)
}

func TestLoadDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BACKUP_DIR=/backups\nPROBE_SAMPLE_SECONDS=4\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("BACKUP_DIR")
		os.Unsetenv("PROBE_SAMPLE_SECONDS")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "/backups", cfg.BackupDir)
	assert.Equal(t, 4*time.Second, cfg.ProbeSampleDuration())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "oracle")

	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadRejectsThresholdOutOfRange(t *testing.T) {
	t.Setenv("ENGINE_INPUT_CONFIDENCE", "1.5")

	_, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())

	cfg.AllowedOrigins = "*"
	assert.Equal(t, []string{"*"}, cfg.Origins())
}

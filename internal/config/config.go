package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/storage"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the server and the CLI.
type Config struct {
	UploadDir  string `yaml:"upload_dir" env:"ROOT_UPLOAD_DIR" env-default:"uploads" validate:"required"`
	TempDir    string `yaml:"temp_dir" env:"TEMP_DIR" env-default:"tmp" validate:"required"`
	Extension  string `yaml:"file_extension" env:"FILE_EXTENSION" env-default:"wav" validate:"required"`
	ConfigDir  string `yaml:"config_dir" env:"CONFIG_DIR" env-default:"config" validate:"required"`
	ConfigPath string `yaml:"config_path" env:"CONFIG_PATH"`
	BackupDir  string `yaml:"backup_dir" env:"BACKUP_DIR"`

	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Probe    ProbeConfig    `yaml:"probe"`

	HostAddr string `yaml:"host" env:"HOST_ADDR" env-default:"0.0.0.0"`
	HostPort string `yaml:"port" env:"HOST_PORT" env-default:"8080"`

	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ORIGINS" env-default:"*"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"104857600" validate:"gt=0"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"INFO"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

// DatabaseConfig is shared by the fingerprint engine and the identifier
// store. For sqlite, Name is the database file path.
type DatabaseConfig struct {
	Type     string `yaml:"type" env:"DATABASE_TYPE" env-default:"sqlite" validate:"oneof=sqlite postgres postgresql"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DATABASE" env-default:"advertdna.sqlite3" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
}

type EngineConfig struct {
	FailClosed            bool    `yaml:"fail_closed" env:"ENGINE_FAIL_CLOSED" env-default:"false"`
	FingerprintConfidence float64 `yaml:"fingerprint_confidence" env:"ENGINE_FINGERPRINT_CONFIDENCE" env-default:"0.8" validate:"gte=0,lte=1"`
	InputConfidence       float64 `yaml:"input_confidence" env:"ENGINE_INPUT_CONFIDENCE" env-default:"0.9" validate:"gte=0,lte=1"`
	Normalize             bool    `yaml:"normalize" env:"ENGINE_NORMALIZE" env-default:"false"`
	SampleRate            int     `yaml:"sample_rate" env:"ENGINE_SAMPLE_RATE" env-default:"11025" validate:"gt=0"`
}

type ProbeConfig struct {
	SampleSeconds  int           `yaml:"sample_seconds" env:"PROBE_SAMPLE_SECONDS" env-default:"10" validate:"gt=0"`
	MaxBytes       int64         `yaml:"max_bytes" env:"PROBE_MAX_BYTES" env-default:"1048576" validate:"gt=0"`
	Attempts       int           `yaml:"attempts" env:"PROBE_ATTEMPTS" env-default:"3" validate:"gte=1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"PROBE_INITIAL_BACKOFF" env-default:"500ms"`
	Transcoder     string        `yaml:"transcoder" env:"PROBE_TRANSCODER" env-default:"ffmpeg"`
}

// Load reads dotenv files (missing ones are skipped), then the optional
// config file at path, then the environment. Environment variables win.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(cfg.ConfigDir, "engine.json")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Connection returns the database parameters for the engine and the store.
func (c *Config) Connection() storage.Connection {
	return storage.Connection{
		Type:     c.Database.Type,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.Name,
		SSLMode:  c.Database.SSLMode,
	}
}

// EngineDocument is the config document the engine is (re)initialised from.
func (c *Config) EngineDocument() engine.Document {
	return engine.NewDocument(c.Connection(), engine.FingerprintSection{
		SampleRate: c.Engine.SampleRate,
		Normalize:  c.Engine.Normalize,
	})
}

func (c *Config) ListenAddr() string {
	return c.HostAddr + ":" + c.HostPort
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) ProbeSampleDuration() time.Duration {
	return time.Duration(c.Probe.SampleSeconds) * time.Second
}

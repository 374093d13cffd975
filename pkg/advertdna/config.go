package advertdna

import (
	"os"
	"path/filepath"
	"time"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
)

type Config struct {
	UploadDir  string
	TempDir    string
	LockDir    string
	Extension  string
	ConfigDir  string
	ConfigPath string
	BackupDir  string

	// EngineDocument is written to ConfigPath whenever that file is missing.
	EngineDocument engine.Document

	Thresholds Thresholds
	// FailClosed aborts a registration when the engine cannot match,
	// instead of treating the failure as no match.
	FailClosed bool

	ResolveAttempts int
	ResolveInterval time.Duration

	Engine       Engine
	EngineLoader EngineLoader
	Store        IdentifierStore
	Logger       Logger
}

type Option func(*Config)

func WithUploadDir(dir string) Option {
	return func(c *Config) {
		c.UploadDir = dir
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithLockDir(dir string) Option {
	return func(c *Config) {
		c.LockDir = dir
	}
}

func WithExtension(ext string) Option {
	return func(c *Config) {
		c.Extension = ext
	}
}

func WithConfigDir(dir string) Option {
	return func(c *Config) {
		c.ConfigDir = dir
	}
}

func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.ConfigPath = path
	}
}

func WithBackupDir(dir string) Option {
	return func(c *Config) {
		c.BackupDir = dir
	}
}

func WithEngineDocument(doc engine.Document) Option {
	return func(c *Config) {
		c.EngineDocument = doc
	}
}

func WithThresholds(t Thresholds) Option {
	return func(c *Config) {
		c.Thresholds = t
	}
}

func WithFailClosed(failClosed bool) Option {
	return func(c *Config) {
		c.FailClosed = failClosed
	}
}

func WithResolvePolicy(attempts int, interval time.Duration) Option {
	return func(c *Config) {
		c.ResolveAttempts = attempts
		c.ResolveInterval = interval
	}
}

// WithEngine fixes the engine. It takes precedence over WithEngineLoader.
func WithEngine(e Engine) Option {
	return func(c *Config) {
		c.Engine = e
	}
}

// WithEngineLoader opens the engine lazily on first use, after the config
// document has been checked.
func WithEngineLoader(load EngineLoader) Option {
	return func(c *Config) {
		c.EngineLoader = load
	}
}

func WithStore(s IdentifierStore) Option {
	return func(c *Config) {
		c.Store = s
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func defaultConfig() *Config {
	return &Config{
		UploadDir:       "uploads",
		TempDir:         filepath.Join(os.TempDir(), "advertdna"),
		Extension:       "wav",
		ConfigDir:       "config",
		ConfigPath:      filepath.Join("config", "engine.json"),
		Thresholds:      DefaultThresholds(),
		ResolveAttempts: 3,
		ResolveInterval: 100 * time.Millisecond,
	}
}

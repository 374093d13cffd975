package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/himanishpuri/AdvertDNA/internal/config"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/identifier"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/probe"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
)

// App holds the components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Pipeline *advertdna.Pipeline
	Store    *identifier.Store
	Prober   *probe.Prober

	closers []io.Closer
}

// NewLogger configures the shared logger from cfg, adding the file sink when
// LOG_FILE is set.
func NewLogger(cfg *config.Config) (*logger.Logger, io.Closer, error) {
	log := logger.GetLogger()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File == "" {
		return log, nil, nil
	}
	sink, err := log.AddFileSink(cfg.Log.File)
	if err != nil {
		return nil, nil, err
	}
	return log, sink, nil
}

// New wires the pipeline, identifier store and prober from cfg. A failing
// engine is logged, not fatal: the pipeline retries on the next request.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	store, err := identifier.Open(cfg.Connection(), log)
	if err != nil {
		log.Warnf("Identifier store unavailable, using engine identifiers: %v", err)
	} else {
		a.Store = store
		a.closers = append(a.closers, store)
	}

	opts := []advertdna.Option{
		advertdna.WithUploadDir(cfg.UploadDir),
		advertdna.WithTempDir(cfg.TempDir),
		advertdna.WithExtension(cfg.Extension),
		advertdna.WithConfigDir(cfg.ConfigDir),
		advertdna.WithConfigPath(cfg.ConfigPath),
		advertdna.WithBackupDir(cfg.BackupDir),
		advertdna.WithEngineDocument(cfg.EngineDocument()),
		advertdna.WithThresholds(advertdna.Thresholds{
			Fingerprint: cfg.Engine.FingerprintConfidence,
			Input:       cfg.Engine.InputConfidence,
		}),
		advertdna.WithFailClosed(cfg.Engine.FailClosed),
		advertdna.WithEngineLoader(func(path string) (advertdna.Engine, error) {
			e, err := engine.Open(path, engine.WithTempDir(cfg.TempDir), engine.WithLogger(log))
			if err != nil {
				return nil, err
			}
			return e, nil
		}),
		advertdna.WithLogger(log),
	}
	if a.Store != nil {
		opts = append(opts, advertdna.WithStore(a.Store))
	}

	pipeline, err := advertdna.New(opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	a.Pipeline = pipeline
	a.closers = append(a.closers, pipeline)

	if err := pipeline.Ready(); err != nil {
		log.Warnf("Fingerprint engine not ready: %v", err)
	}

	a.Prober = probe.New(
		probe.WithRetry(cfg.Probe.Attempts, cfg.Probe.InitialBackoff),
		probe.WithSampleBudget(cfg.ProbeSampleDuration(), cfg.Probe.MaxBytes),
		probe.WithScratchDir(cfg.TempDir),
		probe.WithTranscoder(cfg.Probe.Transcoder),
		probe.WithLogger(log),
	)
	return a, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

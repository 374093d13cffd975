package advertdna

import (
	"context"
	"time"

	"github.com/himanishpuri/AdvertDNA/pkg/models"
)

// Engine is the fingerprint engine as seen by the pipeline.
type Engine interface {
	// Match ranks indexed clips against the clip at path, best first.
	Match(ctx context.Context, path string) ([]models.FingerprintRecord, error)
	// Index fingerprints the clip at path under its filename-derived
	// canonical name and returns the identifier of the row it created.
	Index(ctx context.Context, path string) (string, error)
}

// EngineLoader opens an engine from the config document at configPath.
type EngineLoader func(configPath string) (Engine, error)

// IdentifierStore reads canonical name -> identifier rows.
type IdentifierStore interface {
	Resolve(ctx context.Context, canonicalName string, attempts int, interval time.Duration) (string, error)
	List(ctx context.Context) ([]models.IdentifierRow, error)
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

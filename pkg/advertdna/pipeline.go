package advertdna

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

// Pipeline deduplicates and registers advertisement clips.
type Pipeline struct {
	cfg *Config
	log Logger

	mu     sync.Mutex
	engine Engine
}

func New(opts ...Option) (*Pipeline, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Engine == nil && cfg.EngineLoader == nil {
		return nil, errors.New("pipeline needs an engine or an engine loader")
	}
	if cfg.Extension = utils.NormalizeExtension(cfg.Extension); cfg.Extension == "" {
		return nil, errors.New("accepted extension is empty")
	}
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Join(cfg.TempDir, ".locks")
	}
	if cfg.Store == nil {
		cfg.Logger.Warnf("No identifier store configured, identifiers come from the engine only")
	}

	p := &Pipeline{cfg: cfg, log: cfg.Logger, engine: cfg.Engine}
	if err := p.EnsureWorkspace(); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the engine when the pipeline opened it.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Engine != nil || p.engine == nil {
		return nil
	}
	var err error
	if c, ok := p.engine.(io.Closer); ok {
		err = c.Close()
	}
	p.engine = nil
	return err
}

// Ready opens the engine now instead of on the first request.
func (p *Pipeline) Ready() error {
	_, err := p.loadEngine()
	return err
}

func (p *Pipeline) Extension() string {
	return p.cfg.Extension
}

// Register runs one upload through validation, matching and indexing. The
// clip never outlives the call.
func (p *Pipeline) Register(ctx context.Context, displayName, uploadFilename string, body io.Reader) (*Registration, error) {
	filename, err := p.validate(displayName, uploadFilename)
	if err != nil {
		return nil, err
	}
	canonical := utils.CanonicalName(filename)
	p.log.Infof("Registering %q from %s", canonical, uploadFilename)

	if err := p.EnsureWorkspace(); err != nil {
		return nil, err
	}

	tempPath, sum, err := p.receive(body)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(tempPath)

	locks, err := acquireLocks(ctx, p.cfg.LockDir, "name:"+canonical, "sha1:"+sum)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() {
		if err := locks.release(); err != nil {
			p.log.Warnf("Releasing registration locks: %v", err)
		}
	}()

	storagePath := filepath.Join(p.cfg.UploadDir, filename)
	if err := place(tempPath, storagePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer p.cleanup(storagePath)

	eng, err := p.loadEngine()
	if err != nil {
		return nil, err
	}

	records, err := eng.Match(ctx, storagePath)
	if err != nil {
		if p.cfg.FailClosed {
			return nil, fmt.Errorf("%w: %w", ErrEngine, err)
		}
		p.log.Warnf("Match failed for %q, treating as no match: %v", canonical, err)
		records = nil
	}

	decision := Decide(records, p.cfg.Thresholds)
	if decision.IsDuplicate {
		p.log.Infof("%q duplicates %q (%s), fingerprint=%.3f input=%.3f", canonical,
			decision.CanonicalName, decision.Identifier,
			decision.Best.FingerprintConfidence, decision.Best.InputConfidence)
		return &Registration{
			Outcome:       OutcomeDuplicate,
			Identifier:    decision.Identifier,
			CanonicalName: decision.CanonicalName,
			Filename:      filename,
			Best:          decision.Best,
		}, nil
	}

	indexedID, err := eng.Index(ctx, storagePath)
	switch {
	case errors.Is(err, engine.ErrNameTaken):
		p.log.Infof("Rejected %q: name is registered for different audio", canonical)
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, canonical)
	case errors.Is(err, engine.ErrNoFingerprints):
		p.log.Infof("Rejected %q: %v", canonical, err)
		return nil, fmt.Errorf("%w: %s", ErrUnusableClip, filename)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	reg := &Registration{
		Outcome:       OutcomeRegistered,
		CanonicalName: canonical,
		Filename:      filename,
		Best:          decision.Best,
	}
	reg.Identifier, reg.Resolved = p.resolve(ctx, canonical, indexedID)

	if p.cfg.BackupDir != "" {
		if err := utils.CopyFile(storagePath, filepath.Join(p.cfg.BackupDir, filename)); err != nil {
			p.log.Errorf("%v: backup of %s: %v", ErrIO, filename, err)
		}
	}

	p.log.Infof("Registered %q as %s", canonical, reg.Identifier)
	return reg, nil
}

// Match runs a read-only match of the uploaded clip against the index.
func (p *Pipeline) Match(ctx context.Context, uploadFilename string, body io.Reader) ([]models.FingerprintRecord, error) {
	if !utils.HasExtension(uploadFilename, p.cfg.Extension) {
		return nil, p.extensionError()
	}
	if err := p.EnsureWorkspace(); err != nil {
		return nil, err
	}

	tempPath, _, err := p.receive(body)
	if err != nil {
		return nil, err
	}
	defer p.cleanup(tempPath)

	eng, err := p.loadEngine()
	if err != nil {
		return nil, err
	}
	records, err := eng.Match(ctx, tempPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	return records, nil
}

// List returns every registered identifier row.
func (p *Pipeline) List(ctx context.Context) ([]models.IdentifierRow, error) {
	if p.cfg.Store == nil {
		return nil, fmt.Errorf("%w: no identifier store configured", ErrStore)
	}
	rows, err := p.cfg.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return rows, nil
}

func (p *Pipeline) validate(displayName, uploadFilename string) (string, error) {
	if !utils.HasExtension(uploadFilename, p.cfg.Extension) {
		return "", p.extensionError()
	}

	name := utils.SanitizeName(displayName)
	if name == "" {
		name = utils.SanitizeName(filepath.Base(uploadFilename))
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: invalid advertisement name %q", ErrValidation, displayName)
	}

	filename := utils.EnsureExtension(name, p.cfg.Extension)
	if utils.CanonicalName(filename) == "" {
		return "", fmt.Errorf("%w: invalid advertisement name %q", ErrValidation, displayName)
	}
	return filename, nil
}

func (p *Pipeline) extensionError() error {
	return fmt.Errorf("%w: only .%s files are accepted", ErrUnsupportedExtension, p.cfg.Extension)
}

// receive writes body to a request-unique temp file and returns its path and
// SHA-1.
func (p *Pipeline) receive(body io.Reader) (string, string, error) {
	path := filepath.Join(p.cfg.TempDir, uuid.NewString()+"."+p.cfg.Extension)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("%w: creating temp file: %v", ErrIO, err)
	}

	h := sha1.New()
	n, err := io.Copy(io.MultiWriter(f, h), body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		p.cleanup(path)
		return "", "", fmt.Errorf("%w: writing upload: %v", ErrIO, err)
	}
	if n == 0 {
		p.cleanup(path)
		return "", "", fmt.Errorf("%w: upload is empty", ErrValidation)
	}
	return path, hex.EncodeToString(h.Sum(nil)), nil
}

// cleanup removes path. Failures are logged and never change the result.
func (p *Pipeline) cleanup(path string) {
	if err := utils.RemoveIfExists(path); err != nil {
		p.log.Warnf("%v: %v", ErrIO, err)
	}
}

func (p *Pipeline) loadEngine() (Engine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.engine != nil {
		return p.engine, nil
	}
	eng, err := p.cfg.EngineLoader(p.cfg.ConfigPath)
	if err != nil {
		p.log.Errorf("Loading fingerprint engine from %s: %v", p.cfg.ConfigPath, err)
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}
	p.engine = eng
	return eng, nil
}

// resolve reads the identifier back from the store, falling back to the one
// the engine returned.
func (p *Pipeline) resolve(ctx context.Context, canonical, indexedID string) (string, bool) {
	if p.cfg.Store == nil {
		return indexedID, false
	}

	id, err := p.cfg.Store.Resolve(ctx, canonical, p.cfg.ResolveAttempts, p.cfg.ResolveInterval)
	if err != nil {
		p.log.Errorf("%v: resolving %q: %v", ErrStore, canonical, err)
		return indexedID, false
	}
	if indexedID != "" && id != indexedID {
		p.log.Warnf("Store identifier %s for %q differs from engine identifier %s", id, canonical, indexedID)
	}
	return id, true
}

// place moves the temp file into the upload directory, copying when the two
// directories sit on different filesystems.
func place(src, dst string) error {
	if err := utils.MoveFile(src, dst); err == nil {
		return nil
	}
	if err := utils.CopyFile(src, dst); err != nil {
		return err
	}
	return utils.RemoveIfExists(src)
}

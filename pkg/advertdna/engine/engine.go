package engine

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/audio"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/fingerprint"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/storage"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

var (
	ErrEngineUnavailable = errors.New("fingerprint engine unavailable")
	ErrMatchFailed       = errors.New("fingerprint match failed")
	ErrIndexFailed       = errors.New("fingerprint index failed")

	// ErrNoFingerprints marks a clip too short or too quiet to hash. It is
	// wrapped by ErrIndexFailed.
	ErrNoFingerprints = errors.New("clip produced no fingerprints")
	// ErrNameTaken is returned by Index when the canonical name is already
	// indexed from different bytes.
	ErrNameTaken = storage.ErrNameTaken
)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Engine fingerprints clips and keeps the acoustic index in the shared
// relational database.
type Engine struct {
	db      *storage.DBClient
	doc     Document
	tempDir string
	log     Logger
}

type Option func(*Engine)

func WithTempDir(dir string) Option {
	return func(e *Engine) { e.tempDir = dir }
}

func WithLogger(log Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Open reads the config document at configPath and connects to the database
// it names. Every failure is reported as ErrEngineUnavailable.
func Open(configPath string, opts ...Option) (*Engine, error) {
	doc, err := ReadDocument(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return OpenDocument(doc, opts...)
}

// OpenDocument connects using an already decoded document.
func OpenDocument(doc Document, opts ...Option) (*Engine, error) {
	db, err := storage.NewDBClient(doc.Connection())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	e := &Engine{db: db, doc: doc, tempDir: os.TempDir()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.GetLogger()
	}
	return e, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// Match fingerprints the clip at path and ranks the indexed advertisements it
// overlaps, best first. An empty slice means nothing matched.
func (e *Engine) Match(ctx context.Context, path string) ([]models.FingerprintRecord, error) {
	peaks, err := e.peaks(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchFailed, err)
	}

	queryFP := fingerprint.Fingerprint(peaks, "")
	queryTotal := fingerprint.CountHashes(queryFP)
	if queryTotal == 0 {
		e.log.Warnf("Clip %s produced no fingerprints", path)
		return []models.FingerprintRecord{}, nil
	}

	hashes := make([]uint32, 0, len(queryFP))
	for h := range queryFP {
		hashes = append(hashes, h)
	}

	dbMap, err := e.db.GetCouplesByHashes(hashes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := fingerprint.QueryFingerprints(peaks, dbMap)
	e.log.Debugf("Retrieved couples for %d/%d hashes, %d candidates", len(dbMap), len(hashes), len(matches))

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.AdvertisementID
	}
	ads, err := e.db.GetAdvertisementsByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchFailed, err)
	}

	records := make([]models.FingerprintRecord, 0, len(matches))
	for _, m := range matches {
		ad, ok := ads[m.AdvertisementID]
		if !ok {
			e.log.Warnf("Match references unknown advertisement %s", m.AdvertisementID)
			continue
		}

		rec := models.FingerprintRecord{
			Identifier:            ad.ID,
			CanonicalName:         ad.Name,
			FingerprintConfidence: ratio(m.Count, ad.TotalHashes),
			InputConfidence:       ratio(m.Count, queryTotal),
			AlignedHashes:         m.Count,
			OffsetMs:              m.OffsetMs,
		}
		if err := rec.Validate(); err != nil {
			e.log.Warnf("Dropping malformed match record: %v", err)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Index fingerprints the clip at path and stores it under the canonical name
// derived from its filename. It returns the identifier of the advertisement
// row, which already existed if the same bytes were indexed under that name
// before. Different bytes under a taken name fail with ErrNameTaken.
func (e *Engine) Index(ctx context.Context, path string) (string, error) {
	name := utils.CanonicalName(path)

	sum, err := fileSHA1(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	if prior, err := e.db.FindBySHA1(sum); err == nil && prior != nil && prior.Name != name {
		e.log.Warnf("Clip %q has the same bytes as %q (%s), indexing anyway", name, prior.Name, prior.ID)
	}

	clip, err := e.load(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	peaks, err := generate(clip)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	fp := fingerprint.Fingerprint(peaks, "")
	total := fingerprint.CountHashes(fp)
	if total == 0 {
		return "", fmt.Errorf("%w: %w: %s", ErrIndexFailed, ErrNoFingerprints, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ad, created, err := e.db.RegisterAdvertisement(name, sum, clip.DurationMs(), total)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}
	if !created {
		e.log.Warnf("Advertisement %q already indexed as %s", name, ad.ID)
		return ad.ID, nil
	}

	for hash, couples := range fp {
		for i := range couples {
			couples[i].AdvertisementID = ad.ID
		}
		fp[hash] = couples
	}

	if err := e.db.StoreFingerprints(fp); err != nil {
		if delErr := e.db.DeleteAdvertisementByID(ad.ID); delErr != nil {
			e.log.Errorf("Rollback of advertisement %s failed: %v", ad.ID, delErr)
		}
		return "", fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	e.log.Infof("Indexed advertisement %q as %s (%d hashes, %dms)", name, ad.ID, total, clip.DurationMs())
	return ad.ID, nil
}

func (e *Engine) peaks(ctx context.Context, path string) ([]fingerprint.Peak, error) {
	clip, err := e.load(ctx, path)
	if err != nil {
		return nil, err
	}
	return generate(clip)
}

// generate yields no peaks for clips shorter than one analysis window.
func generate(clip *audio.Clip) ([]fingerprint.Peak, error) {
	if len(clip.Samples) < fingerprint.WindowSize {
		return nil, nil
	}
	return fingerprint.Generate(clip.Samples, clip.SampleRate)
}

// load decodes path, re-encoding it through ffmpeg first when the document
// asks for normalisation.
func (e *Engine) load(ctx context.Context, path string) (*audio.Clip, error) {
	if !e.doc.Fingerprint.Normalize {
		return audio.ReadWav(path)
	}

	monoPath, err := audio.ConvertToMonoWAV(ctx, path, e.tempDir, audio.ConvertWAVConfig{
		SampleRate: e.doc.Fingerprint.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("audio conversion failed: %w", err)
	}
	defer func() {
		if err := utils.RemoveIfExists(monoPath); err != nil {
			e.log.Warnf("%v", err)
		}
	}()
	return audio.ReadWav(monoPath)
}

func ratio(part, whole int) float64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part >= whole {
		return 1
	}
	return float64(part) / float64(whole)
}

func fileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

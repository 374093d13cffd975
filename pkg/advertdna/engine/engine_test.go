package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/AdvertDNA/internal/testsupport"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/storage"
	"github.com/himanishpuri/AdvertDNA/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T) (*Engine, string) {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "configs", "engine.cnf")
	doc := NewDocument(storage.Connection{Type: "sqlite", Database: filepath.Join(dir, "ads.sqlite3")}, FingerprintSection{})
	require.NoError(t, WriteDocument(configPath, doc))

	e, err := Open(configPath, WithTempDir(dir), WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, dir
}

func TestDocumentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "engine.cnf")
	conn := storage.Connection{Type: "postgres", Host: "db", User: "radio", Password: "secret", Database: "ads"}
	require.NoError(t, WriteDocument(path, NewDocument(conn, FingerprintSection{SampleRate: 11025})))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", doc.DatabaseType)
	assert.Equal(t, "radio", doc.Database.User)
	assert.Equal(t, 11025, doc.Fingerprint.SampleRate)
	assert.Equal(t, conn.Database, doc.Connection().Database)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"database_type": "postgres"`)
}

func TestDocumentKeepsStoreConnection(t *testing.T) {
	conn := storage.Connection{
		Type:     "postgres",
		Host:     "db.internal",
		Port:     "6432",
		User:     "radio",
		Password: "p w=x",
		Database: "adverts",
		SSLMode:  "require",
	}
	path := filepath.Join(t.TempDir(), "engine.json")
	require.NoError(t, WriteDocument(path, NewDocument(conn, FingerprintSection{})))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, conn, doc.Connection())

	storeDSN, err := conn.DSN()
	require.NoError(t, err)
	engineDSN, err := doc.Connection().DSN()
	require.NoError(t, err)
	assert.Equal(t, storeDSN, engineDSN)
}

func TestOpenMissingConfigIsUnavailable(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.cnf"))
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestMatchOnEmptyIndex(t *testing.T) {
	e, dir := setupEngine(t)
	clip := testsupport.WriteClip(t, dir, "query.wav", 2, 3)

	records, err := e.Match(context.Background(), clip)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestIndexThenMatchIdenticalBytes(t *testing.T) {
	e, dir := setupEngine(t)
	ctx := context.Background()

	clip := testsupport.WriteClip(t, dir, "promo1.wav", 2, 42)
	id, err := e.Index(ctx, clip)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	copyPath := testsupport.WriteClip(t, filepath.Join(dir, "other"), "promo1-copy.wav", 2, 42)
	records, err := e.Match(ctx, copyPath)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	best := records[0]
	assert.Equal(t, id, best.Identifier)
	assert.Equal(t, "promo1", best.CanonicalName)
	assert.InDelta(t, 1.0, best.FingerprintConfidence, 1e-9)
	assert.InDelta(t, 1.0, best.InputConfidence, 1e-9)
}

func TestIndexSameNameSameBytesReturnsExistingIdentifier(t *testing.T) {
	e, dir := setupEngine(t)
	ctx := context.Background()

	first, err := e.Index(ctx, testsupport.WriteClip(t, dir, "jingle.wav", 2, 1))
	require.NoError(t, err)

	second, err := e.Index(ctx, testsupport.WriteClip(t, filepath.Join(dir, "b"), "jingle.wav", 2, 1))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIndexSameNameDifferentBytesIsRejected(t *testing.T) {
	e, dir := setupEngine(t)
	ctx := context.Background()

	first, err := e.Index(ctx, testsupport.WriteClip(t, dir, "jingle.wav", 2, 1))
	require.NoError(t, err)

	other := testsupport.WriteClip(t, filepath.Join(dir, "b"), "jingle.wav", 2, 99)
	_, err = e.Index(ctx, other)
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.ErrorIs(t, err, ErrIndexFailed)

	records, err := e.Match(ctx, other)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, first, rec.Identifier)
		assert.Less(t, rec.InputConfidence, 0.9)
	}
}

func TestIndexSilentClipHasNoFingerprints(t *testing.T) {
	e, dir := setupEngine(t)
	path := filepath.Join(dir, "silence.wav")
	testsupport.WriteSamples(t, path, make([]int, testsupport.SampleRate/2))

	_, err := e.Index(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoFingerprints)
}

func TestIndexRejectsNonWav(t *testing.T) {
	e, dir := setupEngine(t)
	path := filepath.Join(dir, "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	_, err := e.Index(context.Background(), path)
	assert.ErrorIs(t, err, ErrIndexFailed)

	_, err = e.Match(context.Background(), path)
	assert.ErrorIs(t, err, ErrMatchFailed)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, ratio(0, 10))
	assert.Equal(t, 0.0, ratio(5, 0))
	assert.Equal(t, 0.5, ratio(5, 10))
	assert.Equal(t, 1.0, ratio(12, 10))
}

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`He said "Ad"`, "He said Ad"},
		{`'promo1'`, "promo1"},
		{"  spaced  ", "spaced"},
		{"“smart”", "smart"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestEnsureExtension(t *testing.T) {
	assert.Equal(t, "promo1.wav", EnsureExtension("promo1", "wav"))
	assert.Equal(t, "promo1.wav", EnsureExtension("promo1.wav", ".wav"))
	assert.Equal(t, "promo1.WAV", EnsureExtension("promo1.WAV", "wav"))
	assert.Equal(t, "promo1.mp3.wav", EnsureExtension("promo1.mp3", "wav"))
}

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("clip.wav", "wav"))
	assert.True(t, HasExtension("clip.WAV", ".wav"))
	assert.False(t, HasExtension("clip.mp3", "wav"))
	assert.False(t, HasExtension("clip", "wav"))
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "promo1", CanonicalName("promo1.wav"))
	assert.Equal(t, "He said Ad", CanonicalName("/uploads/He said Ad.wav"))
}

func TestRemoveIfExistsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, RemoveIfExists(""))
	assert.False(t, FileExists(path))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "backup", "dst.wav")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.False(t, FileExists(dst+".part"))
}

package testsupport

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// SampleRate is the rate every synthetic clip is rendered at.
const SampleRate = 11025

// SynthSamples renders seconds of tone bursts whose pitch changes every
// 100ms. The same seed always yields the same samples.
func SynthSamples(seconds float64, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * SampleRate)
	out := make([]int, n)
	burst := SampleRate / 10
	var freqA, freqB float64
	for i := 0; i < n; i++ {
		if i%burst == 0 {
			freqA = 200 + rng.Float64()*1800
			freqB = 2000 + rng.Float64()*2500
		}
		t := float64(i) / SampleRate
		v := 0.5*math.Sin(2*math.Pi*freqA*t) + 0.3*math.Sin(2*math.Pi*freqB*t) + 0.01*(rng.Float64()-0.5)
		out[i] = int(v * 32767 * 0.9)
	}
	return out
}

// WriteClip writes a mono 16-bit WAV built from SynthSamples to dir/name and
// returns its path.
func WriteClip(t testing.TB, dir, name string, seconds float64, seed int64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	WriteSamples(t, path, SynthSamples(seconds, seed))
	return path
}

// WriteSamples writes samples as a mono 16-bit WAV at path.
func WriteSamples(t testing.TB, path string, samples []int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, SampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: SampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

// ClipBytes returns the WAV encoding of a synthetic clip.
func ClipBytes(t testing.TB, seconds float64, seed int64) []byte {
	t.Helper()

	path := WriteClip(t, t.TempDir(), "clip.wav", seconds, seed)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// Reader wraps bytes for upload style APIs.
func Reader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}

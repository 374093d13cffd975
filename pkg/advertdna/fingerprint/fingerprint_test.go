package fingerprint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// synthClip renders tone bursts that change pitch every 100ms over light noise.
func synthClip(seconds float64, sampleRate int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	burst := sampleRate / 10
	var freqA, freqB float64
	for i := 0; i < n; i++ {
		if i%burst == 0 {
			freqA = 200 + rng.Float64()*1800
			freqB = 2000 + rng.Float64()*2500
		}
		t := float64(i) / float64(sampleRate)
		out[i] = 0.5*math.Sin(2*math.Pi*freqA*t) + 0.3*math.Sin(2*math.Pi*freqB*t) + 0.01*(rng.Float64()-0.5)
	}
	return out
}

func TestHamming(t *testing.T) {
	w := Hamming(WindowSize)
	require.Len(t, w, WindowSize)
	assert.InDelta(t, 0.08, w[0], 1e-9)
	assert.InDelta(t, 0.08, w[WindowSize-1], 1e-9)
}

func TestComputeSpectrogramRejectsShortInput(t *testing.T) {
	_, err := ComputeSpectrogram(make([]float64, WindowSize-1), 11025, 0, 0)
	assert.Error(t, err)

	_, err = ComputeSpectrogram(nil, 11025, 0, 0)
	assert.Error(t, err)

	_, err = ComputeSpectrogram(make([]float64, 4096), 0, 0, 0)
	assert.Error(t, err)
}

func TestExtractPeaksSorted(t *testing.T) {
	samples := synthClip(2, 11025, 1)

	peaks, err := Generate(samples, 11025)
	require.NoError(t, err)
	require.NotEmpty(t, peaks)

	for i := 1; i < len(peaks); i++ {
		prev, cur := peaks[i-1], peaks[i]
		require.True(t, cur.TimeIdx > prev.TimeIdx || (cur.TimeIdx == prev.TimeIdx && cur.FreqIdx >= prev.FreqIdx),
			"peaks out of order at %d", i)
		assert.GreaterOrEqual(t, cur.Freq, 0.0)
	}
}

func TestCreateAddressBounds(t *testing.T) {
	anchor := Peak{FreqIdx: 12, Time: 1.0}

	_, ok := createAddress(anchor, Peak{FreqIdx: 40, Time: 1.005})
	assert.False(t, ok, "delta below MinDeltaMs")

	_, ok = createAddress(anchor, Peak{FreqIdx: 40, Time: 17.0})
	assert.False(t, ok, "delta above MaxDeltaMs")

	_, ok = createAddress(anchor, Peak{FreqIdx: 1 << MaxFreqBits, Time: 1.5})
	assert.False(t, ok, "frequency index does not fit")

	addr, ok := createAddress(anchor, Peak{FreqIdx: 40, Time: 1.5})
	require.True(t, ok)
	assert.Equal(t, uint32(500), addr&((1<<MaxDeltaBits)-1))
	assert.Equal(t, uint32(40), (addr>>MaxDeltaBits)&((1<<MaxFreqBits)-1))
	assert.Equal(t, uint32(12), addr>>(MaxDeltaBits+MaxFreqBits))
}

func TestIdenticalClipAlignsEveryHash(t *testing.T) {
	samples := synthClip(2, 11025, 7)
	peaks, err := Generate(samples, 11025)
	require.NoError(t, err)

	stored := Fingerprint(peaks, "ad-1")
	total := CountHashes(stored)
	require.Positive(t, total)

	queryPeaks, err := Generate(samples, 11025)
	require.NoError(t, err)

	matches := QueryFingerprints(queryPeaks, stored)
	require.Len(t, matches, 1)
	assert.Equal(t, "ad-1", matches[0].AdvertisementID)
	assert.Equal(t, total, matches[0].Count)
}

func TestQueryFingerprintsRanksStrongestFirst(t *testing.T) {
	a, err := Generate(synthClip(2, 11025, 11), 11025)
	require.NoError(t, err)
	b, err := Generate(synthClip(2, 11025, 12), 11025)
	require.NoError(t, err)

	db := Fingerprint(a, "ad-a")
	for hash, couples := range Fingerprint(b, "ad-b") {
		db[hash] = append(db[hash], couples...)
	}

	query, err := Generate(synthClip(2, 11025, 12), 11025)
	require.NoError(t, err)

	matches := QueryFingerprints(query, db)
	require.NotEmpty(t, matches)
	assert.Equal(t, "ad-b", matches[0].AdvertisementID)
}

package audio

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePCM128 writes five seconds of 8 kHz 16-bit mono PCM, which is a
// 128 kb/s stream.
func writePCM128(t *testing.T, path string) {
	t.Helper()

	const rate = 8000
	samples := make([]int, 5*rate)
	for i := range samples {
		samples[i] = int(12000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestMeasureBitrateWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skipf("ffmpeg not found in PATH: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	writePCM128(t, path)

	kbps, err := MeasureBitrate(context.Background(), "", path)
	require.NoError(t, err)
	assert.InDelta(t, 128, kbps, 1)
}

func TestMeasureBitrateMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writePCM128(t, path)

	_, err := MeasureBitrate(context.Background(), filepath.Join(t.TempDir(), "no-such-ffmpeg"), path)
	assert.Error(t, err)
}

func TestParseBitrate(t *testing.T) {
	banner := `Input #0, mp3, from 'sample.mp3':
  Duration: 00:00:10.03, start: 0.025057, bitrate: 128 kb/s
  Stream #0:0: Audio: mp3, 44100 Hz, stereo, fltp, 128 kb/s
At least one output file must be specified`

	kbps, err := ParseBitrate(banner)
	require.NoError(t, err)
	assert.Equal(t, 128, kbps)
}

func TestParseBitrateMissing(t *testing.T) {
	_, err := ParseBitrate("Duration: N/A, bitrate: N/A")
	assert.ErrorIs(t, err, ErrNoBitrate)
}

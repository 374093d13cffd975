package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file is not a decodable PCM WAV container.
var ErrNotWAV = errors.New("not a PCM WAV file")

// Clip is a decoded, mono, normalised clip.
type Clip struct {
	Samples    []float64 // mono samples in [-1, 1]
	SampleRate int
}

// DurationMs returns the clip length in milliseconds.
func (c *Clip) DurationMs() int {
	if c.SampleRate == 0 {
		return 0
	}
	return int(int64(len(c.Samples)) * 1000 / int64(c.SampleRate))
}

// ReadWav decodes a PCM WAV file and downmixes it to mono. Any bit depth the
// decoder understands is accepted.
func ReadWav(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotWAV)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%s: unsupported WAV audio format %d, only PCM (1) supported", path, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding PCM samples: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, fmt.Errorf("%s: missing format information", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) * scale
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

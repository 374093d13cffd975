package fingerprint

import (
	"errors"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	WindowSize = 1024
	HopSize    = 256
)

// Hamming returns a Hamming window of length n.
func Hamming(n int) []float64 {
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// MagnitudeSpectrum keeps the non-negative half of an FFT.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum) / 2
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT slides a window over samples and returns one magnitude frame per hop.
func STFT(samples []float64, windowSize, hopSize int, window []float64) ([][]float64, error) {
	if len(window) != windowSize {
		return nil, errors.New("window length must equal windowSize")
	}
	if len(samples) < windowSize {
		return nil, errors.New("input shorter than window size")
	}

	spectrogram := make([][]float64, 0, (len(samples)-windowSize)/hopSize+1)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(samples); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = samples[start+i] * window[i]
		}
		spectrogram = append(spectrogram, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return spectrogram, nil
}

// ComputeSpectrogram builds a spectrogram from mono samples. Zero window or
// hop sizes select the package defaults.
func ComputeSpectrogram(samples []float64, sampleRate, windowSizeArg, hopSizeArg int) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, errors.New("samples cannot be empty")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}

	ws := windowSizeArg
	if ws == 0 {
		ws = WindowSize
	}
	hs := hopSizeArg
	if hs == 0 {
		hs = HopSize
	}

	if len(samples) < ws {
		return nil, errors.New("audio too short for window size")
	}

	return STFT(samples, ws, hs, Hamming(ws))
}

package fingerprint

import (
	"math"
	"sort"
)

type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64 // seconds
	Freq    float64 // Hz
	MagDB   float64
}

const (
	freqNeighbour = 3
	timeNeighbour = 1
	minDbAboveAvg = 3.0
	eps           = 1e-10
)

// logBands splits nBins into a low band followed by octave-wide bands.
func logBands(nBins int) [][2]int {
	bands := [][2]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		end := min(start*2, nBins)
		bands = append(bands, [2]int{start, end})
		if end == nBins {
			break
		}
	}
	return bands
}

// ExtractPeaks picks the strongest bin per band in every frame and keeps it
// when it is loud relative to the frame and a local maximum in its
// time/frequency neighbourhood. Peaks are returned in time order.
func ExtractPeaks(spectrogram [][]float64, sampleRate int) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 || sampleRate <= 0 {
		return nil
	}

	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])

	freqRes := float64(sampleRate) / float64(WindowSize)
	frameTime := float64(HopSize) / float64(sampleRate)
	bands := logBands(nBins)

	peaks := make([]Peak, 0, nFrames*2)
	bandMag := make([]float64, len(bands))
	bandIdx := make([]int, len(bands))

	for t := 0; t < nFrames; t++ {
		frame := spectrogram[t]

		var sumDb float64
		for bi, b := range bands {
			maxMag, maxIdx := 0.0, b[0]
			for i := b[0]; i < b[1]; i++ {
				if frame[i] > maxMag {
					maxMag, maxIdx = frame[i], i
				}
			}
			bandMag[bi], bandIdx[bi] = maxMag, maxIdx
			sumDb += 20.0 * math.Log10(maxMag+eps)
		}
		avgDb := sumDb / float64(len(bands))

		for bi, mag := range bandMag {
			if mag <= 0 {
				continue
			}
			magDb := 20.0 * math.Log10(mag+eps)
			if magDb < avgDb+minDbAboveAvg {
				continue
			}

			bin := bandIdx[bi]
			if !isLocalMax(spectrogram, t, bin, mag) {
				continue
			}

			peaks = append(peaks, Peak{
				TimeIdx: t,
				FreqIdx: bin,
				Time:    float64(t) * frameTime,
				Freq:    float64(bin) * freqRes,
				MagDB:   magDb,
			})
		}
	}

	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})

	return peaks
}

func isLocalMax(spectrogram [][]float64, t, bin int, mag float64) bool {
	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])
	for dt := -timeNeighbour; dt <= timeNeighbour; dt++ {
		tIdx := t + dt
		if tIdx < 0 || tIdx >= nFrames {
			continue
		}
		for df := -freqNeighbour; df <= freqNeighbour; df++ {
			fIdx := bin + df
			if fIdx < 0 || fIdx >= nBins || (dt == 0 && df == 0) {
				continue
			}
			if spectrogram[tIdx][fIdx] > mag {
				return false
			}
		}
	}
	return true
}

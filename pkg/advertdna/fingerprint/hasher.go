package fingerprint

import (
	"math"
)

// Hash layout: [anchorFreq (9 bits) | targetFreq (9 bits) | deltaMs (14 bits)]
const (
	MaxFreqBits  = 9
	MaxDeltaBits = 14
	FanOut       = 6
	MinDeltaMs   = 10
	MaxDeltaMs   = 15000
)

func createAddress(anchor Peak, target Peak) (uint32, bool) {
	anchorFreq := uint32(anchor.FreqIdx)
	targetFreq := uint32(target.FreqIdx)

	deltaMs := uint32(math.Round((target.Time - anchor.Time) * 1000.0))
	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs {
		return 0, false
	}

	freqMask := uint32((1 << MaxFreqBits) - 1)
	deltaMask := uint32((1 << MaxDeltaBits) - 1)

	if anchorFreq > freqMask || targetFreq > freqMask || deltaMs > deltaMask {
		return 0, false
	}

	return (anchorFreq << (MaxDeltaBits + MaxFreqBits)) | (targetFreq << MaxDeltaBits) | deltaMs, true
}

// pairs calls fn for every (anchor, target) hash under the fan-out policy.
// peaks must be sorted by time.
func pairs(peaks []Peak, fn func(hash uint32, anchor Peak)) {
	for i := 0; i < len(peaks); i++ {
		anchor := peaks[i]
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			addr, ok := createAddress(anchor, peaks[j])
			if !ok {
				continue
			}
			fn(addr, anchor)
			paired++
		}
	}
}

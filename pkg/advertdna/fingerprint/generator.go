package fingerprint

import (
	"math"
	"sort"

	"github.com/himanishpuri/AdvertDNA/pkg/models"
)

// Fingerprint produces hash -> []Couple entries for the given peaks, all
// attributed to advertisementID.
func Fingerprint(peaks []Peak, advertisementID string) map[uint32][]models.Couple {
	sortByTime(peaks)

	fp := make(map[uint32][]models.Couple)
	pairs(peaks, func(addr uint32, anchor Peak) {
		fp[addr] = append(fp[addr], models.Couple{
			AdvertisementID: advertisementID,
			AnchorTimeMs:    anchorMs(anchor),
		})
	})
	return fp
}

// CountHashes returns the number of couples in a fingerprint map.
func CountHashes(fp map[uint32][]models.Couple) int {
	n := 0
	for _, couples := range fp {
		n += len(couples)
	}
	return n
}

// QueryFingerprints votes for (advertisement, offset) pairs using the stored
// buckets in db and returns one match per advertisement at its best offset,
// strongest first.
func QueryFingerprints(queryPeaks []Peak, db map[uint32][]models.Couple) []models.Match {
	sortByTime(queryPeaks)

	votes := make(map[string]map[int32]int)
	pairs(queryPeaks, func(addr uint32, anchor Peak) {
		bucket, ok := db[addr]
		if !ok {
			return
		}
		queryMs := int32(anchorMs(anchor))
		for _, cou := range bucket {
			offset := int32(cou.AnchorTimeMs) - queryMs
			m, ok := votes[cou.AdvertisementID]
			if !ok {
				m = make(map[int32]int)
				votes[cou.AdvertisementID] = m
			}
			m[offset]++
		}
	})

	matches := make([]models.Match, 0, len(votes))
	for id, offsets := range votes {
		bestOffset, bestCount := int32(0), 0
		for off, cnt := range offsets {
			if cnt > bestCount || (cnt == bestCount && off < bestOffset) {
				bestCount, bestOffset = cnt, off
			}
		}
		if bestCount > 0 {
			matches = append(matches, models.Match{AdvertisementID: id, OffsetMs: bestOffset, Count: bestCount})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count == matches[j].Count {
			return matches[i].AdvertisementID < matches[j].AdvertisementID
		}
		return matches[i].Count > matches[j].Count
	})
	return matches
}

// Generate runs the whole pipeline from samples to time-ordered peaks.
func Generate(samples []float64, sampleRate int) ([]Peak, error) {
	spec, err := ComputeSpectrogram(samples, sampleRate, 0, 0)
	if err != nil {
		return nil, err
	}
	return ExtractPeaks(spec, sampleRate), nil
}

func anchorMs(p Peak) uint32 {
	return uint32(math.Round(p.Time * 1000.0))
}

func sortByTime(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Time < peaks[j].Time })
}

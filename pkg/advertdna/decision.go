package advertdna

import "github.com/himanishpuri/AdvertDNA/pkg/models"

// Thresholds are exclusive lower bounds. A clip is a duplicate only when its
// best match exceeds both.
type Thresholds struct {
	Fingerprint float64
	Input       float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Fingerprint: 0.8, Input: 0.9}
}

// Exceeds reports whether rec clears both thresholds.
func (t Thresholds) Exceeds(rec models.FingerprintRecord) bool {
	return rec.FingerprintConfidence > t.Fingerprint && rec.InputConfidence > t.Input
}

// Decide looks only at the best ranked record. Records must be ordered best
// first, as the engine returns them.
func Decide(records []models.FingerprintRecord, t Thresholds) models.MatchDecision {
	if len(records) == 0 {
		return models.MatchDecision{}
	}

	best := records[0]
	decision := models.MatchDecision{Best: &best}
	if t.Exceeds(best) {
		decision.IsDuplicate = true
		decision.Identifier = best.Identifier
		decision.CanonicalName = best.CanonicalName
	}
	return decision
}

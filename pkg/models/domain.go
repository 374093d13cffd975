package models

import (
	"errors"
	"fmt"
)

// FingerprintRecord is a previously registered advertisement as reported by
// the fingerprint engine for one match call. Records are ordered best first.
type FingerprintRecord struct {
	Identifier            string  // Engine identifier of the registered advertisement
	CanonicalName         string  // Name the advertisement was indexed under
	FingerprintConfidence float64 // Share of the stored record's hashes that aligned (0-1)
	InputConfidence       float64 // Share of the submitted clip's hashes that aligned (0-1)
	AlignedHashes         int     // Number of hashes agreeing on the best offset
	OffsetMs              int32   // Offset of the submitted clip inside the stored record
}

// Validate rejects records the pipeline must never see.
func (r FingerprintRecord) Validate() error {
	if r.Identifier == "" {
		return errors.New("record has no identifier")
	}
	if r.CanonicalName == "" {
		return fmt.Errorf("record %s has no canonical name", r.Identifier)
	}
	if r.FingerprintConfidence < 0 || r.FingerprintConfidence > 1 {
		return fmt.Errorf("record %s: fingerprint confidence %.4f out of range", r.Identifier, r.FingerprintConfidence)
	}
	if r.InputConfidence < 0 || r.InputConfidence > 1 {
		return fmt.Errorf("record %s: input confidence %.4f out of range", r.Identifier, r.InputConfidence)
	}
	return nil
}

// MatchDecision is derived from the best ranked record and never stored.
type MatchDecision struct {
	IsDuplicate   bool
	Identifier    string // set only when IsDuplicate
	CanonicalName string // set only when IsDuplicate
	Best          *FingerprintRecord
}

// IdentifierRow maps a canonical name to the identifier the engine assigned.
type IdentifierRow struct {
	Identifier    string `db:"id" json:"id"`
	CanonicalName string `db:"name" json:"name"`
	DurationMs    int    `db:"duration_ms" json:"duration_ms"`
	TotalHashes   int    `db:"total_hashes" json:"total_hashes"`
}

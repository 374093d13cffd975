package models

// Couple is the stored value for a hash bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the source clip.
type Couple struct {
	AdvertisementID string
	AnchorTimeMs    uint32
}

// Match is a candidate produced by offset voting.
type Match struct {
	AdvertisementID string
	OffsetMs        int32 // storedAnchorTimeMs - queryAnchorTimeMs
	Count           int
}

package main

import "github.com/himanishpuri/AdvertDNA/pkg/models"

// UploadQuery is the query string of POST /upload.
type UploadQuery struct {
	Name string `validate:"required,max=250"`
}

// ProbeQuery is the query string of GET /valid/channel.
type ProbeQuery struct {
	URL string `validate:"required,url"`
}

// UploadResponse is returned by POST /upload for every outcome.
type UploadResponse struct {
	Success           bool   `json:"success"`
	Status            int    `json:"status"`
	Message           string `json:"message"`
	AdvertisementID   string `json:"advertisement_id,omitempty"`
	AdvertisementName string `json:"advertisement_name,omitempty"`
	RegisteredID      string `json:"registered_id,omitempty"`
	RegisteredName    string `json:"registered_name,omitempty"`
}

// ProbeResponse is returned by GET /valid/channel.
type ProbeResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Bitrate int    `json:"bitrate"`
}

// MatchResultDTO is one ranked engine record.
type MatchResultDTO struct {
	AdvertisementID       string  `json:"advertisement_id"`
	AdvertisementName     string  `json:"advertisement_name"`
	FingerprintConfidence float64 `json:"fingerprint_confidence"`
	InputConfidence       float64 `json:"input_confidence"`
	AlignedHashes         int     `json:"aligned_hashes"`
	OffsetMs              int32   `json:"offset_ms"`
}

// MatchResponse is the response for POST /api/match
type MatchResponse struct {
	Matches []MatchResultDTO `json:"matches"`
	Count   int              `json:"count"`
}

// ListAdvertisementsResponse is the response for GET /api/advertisements
type ListAdvertisementsResponse struct {
	Advertisements []models.IdentifierRow `json:"advertisements"`
	Count          int                    `json:"count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func toMatchDTOs(records []models.FingerprintRecord) []MatchResultDTO {
	out := make([]MatchResultDTO, len(records))
	for i, r := range records {
		out[i] = MatchResultDTO{
			AdvertisementID:       r.Identifier,
			AdvertisementName:     r.CanonicalName,
			FingerprintConfidence: r.FingerprintConfidence,
			InputConfidence:       r.InputConfidence,
			AlignedHashes:         r.AlignedHashes,
			OffsetMs:              r.OffsetMs,
		}
	}
	return out
}

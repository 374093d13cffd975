package advertdna

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation rejects a request before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrEngine wraps fingerprint engine failures that abort a request.
	ErrEngine = errors.New("fingerprint engine error")
	// ErrStore marks an identifier lookup failure. It is logged, not returned,
	// once a clip has been indexed.
	ErrStore = errors.New("identifier store error")
	// ErrIO covers working directory and temp file failures.
	ErrIO = errors.New("io error")
)

var (
	// ErrUnsupportedExtension is the ErrValidation returned for uploads that
	// do not carry the accepted extension.
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported file extension", ErrValidation)
	// ErrNameTaken rejects a clip whose name is already registered for
	// different audio.
	ErrNameTaken = fmt.Errorf("%w: name already registered", ErrValidation)
	// ErrUnusableClip rejects a clip too short or too quiet to fingerprint.
	ErrUnusableClip = fmt.Errorf("%w: clip produced no fingerprints", ErrValidation)
)

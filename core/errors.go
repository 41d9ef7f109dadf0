package core

import "errors"

var (
	// ErrRetrieval marks an example retrieval backend failure. Responders
	// absorb it and continue with a fallback note.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrClassification marks an intent classifier call failure. It is
	// fatal to the turn unless an override short-circuits routing.
	ErrClassification = errors.New("classification failed")

	// ErrGeneration marks a reply generation failure. It is fatal to the turn.
	ErrGeneration = errors.New("generation failed")

	// ErrInvalidOverride marks a user-supplied persona choice that is not in
	// the catalog. It is treated as if no override was given.
	ErrInvalidOverride = errors.New("invalid persona override")
)

package radar

import "errors"

var (
	// ErrAlreadyActive is returned by CollectionController.Start when a
	// collection session is already running. The caller should Stop first
	// or ignore the error.
	ErrAlreadyActive = errors.New("collection already active")

	// ErrSourceUnavailable is returned by PlaybackManager.Start when the
	// replay source cannot be opened. The session is left in the Stopped
	// state and no delivery loop runs.
	ErrSourceUnavailable = errors.New("playback source unavailable")

	// ErrSessionNotFound is returned for operations on an unknown playback
	// session id.
	ErrSessionNotFound = errors.New("playback session not found")
)

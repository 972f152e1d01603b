// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrValidation indicates a malformed inbound request.
var ErrValidation = errors.New("validation error")

// ErrTaskNotFound indicates the requested task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskTerminal indicates a continue or cancel on a task that already
// reached a terminal state. The task is left unmodified.
var ErrTaskTerminal = errors.New("task is in a terminal state")

// ErrExtractionParse indicates the extraction capability returned a reply
// that could not be decoded. Recoverable.
var ErrExtractionParse = errors.New("extraction parse error")

// ErrCapabilityUnavailable indicates a transport failure talking to an
// external capability. Recoverable; degrades only that feature for the turn.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// ErrSpeechIO indicates speech capture or synthesis failed. Recoverable.
var ErrSpeechIO = errors.New("speech io error")

// ErrSessionAborted is raised internally after consecutive-error exhaustion.
var ErrSessionAborted = errors.New("session aborted")

// IsProtocolError reports whether err belongs to the small set of errors
// that may be surfaced to inbound callers.
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrTaskTerminal)
}

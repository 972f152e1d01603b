// Package speech defines the port for speech capture and synthesis.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/careline/internal/domain"
)

// IO listens for one caller utterance and speaks agent replies.
// Listen returns an error wrapping domain.ErrSpeechIO when nothing
// intelligible was captured; use FailureKind to classify it.
type IO interface {
	Listen(ctx context.Context) (string, error)
	Speak(ctx context.Context, text string) error
}

// Capture failures an IO implementation reports from Listen.
var (
	ErrTimeout = fmt.Errorf("%w: no speech before timeout", domain.ErrSpeechIO)
	ErrUnclear = fmt.Errorf("%w: speech not recognized", domain.ErrSpeechIO)
	ErrNetwork = fmt.Errorf("%w: recognition service unreachable", domain.ErrSpeechIO)
)

// FailureKind maps a Listen error to the failure kind reported to the
// protocol service: timeout, unclear, network or error.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnclear):
		return "unclear"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "error"
	}
}

// Package recorder defines the port for persisting finished session records.
package recorder

import (
	"context"

	"github.com/Strob0t/careline/internal/domain/session"
)

// Sink writes one complete session record. Write must either persist the
// whole record or nothing.
type Sink interface {
	Write(ctx context.Context, rec *session.Record) error
}

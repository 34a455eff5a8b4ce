// Package history defines the play history recorder contract and its
// in-memory implementations. Durable recorders live next to their counter
// stores under repository/.
package history

import (
	"context"

	"github.com/okian/playstats/internal/domain/model"
)

// Recorder appends immutable play records. It shares no failure path with
// the counter store: callers invoke the two independently.
type Recorder interface {
	// Append stores rec. It fails only with repository.ErrStorageUnavailable
	// or repository.ErrInvalidArgument.
	Append(ctx context.Context, rec model.PlayRecord) error
}

// Reader is implemented by recorders able to list recent plays of a group,
// newest first, for debugging.
type Reader interface {
	Recent(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error)
}

// Nop discards every record. It is used when history is disabled.
type Nop struct{}

// Append implements Recorder.
func (Nop) Append(context.Context, model.PlayRecord) error { return nil }

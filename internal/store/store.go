// Package store persists room aggregates (a room plus every round played in
// it). Saves are optimistic: the caller names the version it read and the
// save fails with a conflict if someone else got there first.
package store

import (
	"context"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

var (
	ErrRoomNotFound = gameerr.NotFound("room not found")
	ErrStaleVersion = gameerr.Conflict("room was changed by another command, retry")
)

type Store interface {
	Load(ctx context.Context, roomID string) (engine.State, error)
	// Save writes s if the stored version still equals expectedVersion.
	// expectedVersion 0 means the room must not exist yet.
	Save(ctx context.Context, s engine.State, expectedVersion int) error
	// Delete removes the room together with its members and rounds.
	Delete(ctx context.Context, roomID string) error
	Close() error
}

package store

import (
	"context"
	"sync"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
)

// Memory keeps rooms in a map. State is cloned on the way in and out so
// callers never share slices with the store.
type Memory struct {
	mu    sync.RWMutex
	rooms map[string]engine.State
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]engine.State)}
}

func (m *Memory) Load(ctx context.Context, roomID string) (engine.State, error) {
	if err := ctx.Err(); err != nil {
		return engine.State{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rooms[roomID]
	if !ok {
		return engine.State{}, ErrRoomNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, s engine.State, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.rooms[s.Room.ID]
	switch {
	case !ok && expectedVersion != 0:
		return ErrRoomNotFound
	case ok && cur.Version != expectedVersion:
		return ErrStaleVersion
	}
	m.rooms[s.Room.ID] = s.Clone()
	return nil
}

func (m *Memory) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
	return nil
}

// Len is the number of stored rooms.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Memory) Close() error { return nil }

package position

import (
	"context"
	"errors"
	"sort"
	"sync"
)

const memMaxPositions = 100_000

// MemStore is a dev-only fallback when DB is not configured, and the store used by
// handler tests.
type MemStore struct {
	mu        sync.Mutex
	positions []Position
}

// NewMemStore constructs an in-memory Store implementation.
func NewMemStore() *MemStore {
	return &MemStore{positions: make([]Position, 0, 256)}
}

// Insert implements Store.
func (s *MemStore) Insert(ctx context.Context, p Position) error {
	if p.ID == "" || p.UserID == "" || p.DeviceID == "" {
		return errors.New("position: invalid input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = append(s.positions, p)

	// Bound memory to avoid unbounded growth in dev.
	if len(s.positions) > memMaxPositions {
		s.positions = s.positions[len(s.positions)-memMaxPositions:]
	}
	return nil
}

// ListByEmail implements Store.
func (s *MemStore) ListByEmail(ctx context.Context, email string, q Query) ([]Position, error) {
	return s.list(ctx, q, func(p Position) bool { return p.Email == email })
}

// ListByDevice implements Store.
func (s *MemStore) ListByDevice(ctx context.Context, deviceID string, q Query) ([]Position, error) {
	return s.list(ctx, q, func(p Position) bool { return p.DeviceID == deviceID })
}

// ListByOwner implements Store.
func (s *MemStore) ListByOwner(ctx context.Context, email, deviceID string, q Query) ([]Position, error) {
	return s.list(ctx, q, func(p Position) bool { return p.Email == email && p.DeviceID == deviceID })
}

func (s *MemStore) list(ctx context.Context, q Query, match func(Position) bool) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()

	s.mu.Lock()
	var snap []Position
	for _, p := range s.positions {
		if match(p) {
			snap = append(snap, p)
		}
	}
	s.mu.Unlock()

	// Newest first; stable so equal timestamps keep insertion order.
	sort.SliceStable(snap, func(i, j int) bool { return snap[i].Timestamp.After(snap[j].Timestamp) })

	start := q.Offset()
	if start >= len(snap) {
		return nil, nil
	}
	end := start + q.Limit
	if end > len(snap) {
		end = len(snap)
	}
	return snap[start:end], nil
}

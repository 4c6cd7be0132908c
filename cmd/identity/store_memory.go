package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemStore is a dev-only fallback when DB is not configured, and the store used by
// handler tests. It honors the same uniqueness and find-or-create contract as the
// Postgres store.
type MemStore struct {
	mu   sync.Mutex
	byID map[string]*Device
	// byPair maps normalized-email + "\x00" + deviceId to a device id.
	byPair map[string]string
}

// NewMemStore constructs an in-memory Store implementation.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[string]*Device),
		byPair: make(map[string]string),
	}
}

func pairKey(emailNorm, deviceID string) string {
	return emailNorm + "\x00" + deviceID
}

// FindOrCreateDevice implements Store.
func (s *MemStore) FindOrCreateDevice(ctx context.Context, in FindOrCreateInput) (FindOrCreateResult, error) {
	const op = "identity.FindOrCreateDevice"

	if err := ctx.Err(); err != nil {
		return FindOrCreateResult{}, err
	}

	emailNorm := NormalizeEmail(in.Email)
	deviceID := strings.TrimSpace(in.DeviceID)
	if emailNorm == "" || deviceID == "" {
		return FindOrCreateResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and deviceId are required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[pairKey(emailNorm, deviceID)]; ok {
		d := s.byID[id]
		d.LastActive = now
		return FindOrCreateResult{Device: *d, Created: false}, nil
	}

	id, err := NewULID(now)
	if err != nil {
		return FindOrCreateResult{}, err
	}

	d := &Device{
		ID:         id,
		Email:      emailNorm,
		DeviceID:   deviceID,
		CreatedAt:  now,
		LastActive: now,
	}
	s.byID[id] = d
	s.byPair[pairKey(emailNorm, deviceID)] = id

	return FindOrCreateResult{Device: *d, Created: true}, nil
}

// GetDeviceByID implements Store.
func (s *MemStore) GetDeviceByID(ctx context.Context, id string) (Device, error) {
	const op = "identity.GetDeviceByID"

	if err := ctx.Err(); err != nil {
		return Device{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Device{}, NotFoundError{Op: op, Resource: "device"}
	}
	return *d, nil
}

// TouchDevice implements Store.
func (s *MemStore) TouchDevice(ctx context.Context, id string, now time.Time) error {
	const op = "identity.TouchDevice"

	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return NotFoundError{Op: op, Resource: "device"}
	}
	d.LastActive = now
	return nil
}

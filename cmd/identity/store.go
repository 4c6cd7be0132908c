package identity

import (
	"context"
	"time"
)

// Device is one enrolled (email, deviceId) identity.
type Device struct {
	ID       string
	Email    string
	DeviceID string

	CreatedAt  time.Time
	LastActive time.Time
}

// FindOrCreateInput describes a device registration/validation request.
// Email must already pass ValidEmail; DeviceID must pass ValidDeviceID.
type FindOrCreateInput struct {
	Email    string
	DeviceID string
	Now      time.Time
}

// FindOrCreateResult reports the resulting identity and whether this call created it.
type FindOrCreateResult struct {
	Device  Device
	Created bool
}

// Store is the identity persistence boundary.
//
// Concurrency contract for FindOrCreateDevice: two concurrent calls for the same
// never-seen pair may both observe "absent" and both attempt the insert. The store's
// uniqueness invariant decides the winner; the loser re-reads and reports Created=false.
// Exactly one caller ever observes Created=true for a given pair.
type Store interface {
	// FindOrCreateDevice returns the identity for the normalized (email, deviceId)
	// pair, creating it when absent. Re-validation of an existing identity touches
	// its last-active timestamp.
	FindOrCreateDevice(ctx context.Context, in FindOrCreateInput) (FindOrCreateResult, error)

	// GetDeviceByID returns the identity with the given store-assigned id.
	GetDeviceByID(ctx context.Context, id string) (Device, error)

	// TouchDevice updates last_active for an identity (best-effort).
	TouchDevice(ctx context.Context, id string, now time.Time) error
}

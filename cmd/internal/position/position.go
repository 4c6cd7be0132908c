package position

import (
	"context"
	"time"
)

// Query paging bounds. The defaults match what existing clients expect.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Position is one recorded GPS fix. Identity fields always come from the access token
// the fix was submitted with, never from the request body.
type Position struct {
	ID       string   `json:"id"`
	UserID   string   `json:"userId"`
	Email    string   `json:"email"`
	DeviceID string   `json:"deviceId"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy *float64 `json:"accuracy,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Query selects a page of fixes, newest first.
type Query struct {
	Limit int
	Page  int
}

// Normalize applies defaults and clamps the paging bounds.
func (q Query) Normalize() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return q
}

// Offset returns the number of rows to skip for the normalized query.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Store is the position persistence boundary. List results are ordered by
// timestamp descending.
type Store interface {
	Insert(ctx context.Context, p Position) error
	ListByEmail(ctx context.Context, email string, q Query) ([]Position, error)
	ListByDevice(ctx context.Context, deviceID string, q Query) ([]Position, error)
	ListByOwner(ctx context.Context, email, deviceID string, q Query) ([]Position, error)
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - The (email_norm, device_id) uniqueness invariant lives in the schema; a concurrent
//   duplicate insert is reclassified as "found" rather than surfaced as an error.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "trackd").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "trackd",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// FindOrCreateDevice implements Store.
//
// The insert is optimistic: look up first, insert on absence, and treat a unique
// violation as losing the race to a concurrent registrant (re-select, Created=false).
func (s *PostgresStore) FindOrCreateDevice(ctx context.Context, in FindOrCreateInput) (FindOrCreateResult, error) {
	const op = "identity.FindOrCreateDevice"

	if s == nil || s.pool == nil {
		return FindOrCreateResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	devices := pgIdent(s.schema, "devices")

	if d, err := s.getByPair(ctx, devices, emailNorm, deviceID); err == nil {
		// Re-validation path: touch last_active per the persistence write rule.
		if terr := s.TouchDevice(ctx, d.ID, now); terr == nil {
			d.LastActive = now
		}
		return FindOrCreateResult{Device: d, Created: false}, nil
	} else if !IsNotFound(err) {
		return FindOrCreateResult{}, err
	}

	id, err := NewULID(now)
	if err != nil {
		return FindOrCreateResult{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+devices+` (id, email, device_id, created_at, last_active)
		 VALUES ($1, $2, $3, $4, $4)`,
		id, emailNorm, deviceID, now,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			// Lost the create race: the pair exists now, so this call is a validation.
			d, gerr := s.getByPair(ctx, devices, emailNorm, deviceID)
			if gerr != nil {
				return FindOrCreateResult{}, gerr
			}
			return FindOrCreateResult{Device: d, Created: false}, nil
		}
		return FindOrCreateResult{}, err
	}

	return FindOrCreateResult{
		Device: Device{
			ID:         id,
			Email:      emailNorm,
			DeviceID:   deviceID,
			CreatedAt:  now,
			LastActive: now,
		},
		Created: true,
	}, nil
}

// GetDeviceByID implements Store.
func (s *PostgresStore) GetDeviceByID(ctx context.Context, id string) (Device, error) {
	const op = "identity.GetDeviceByID"

	if err := ctx.Err(); err != nil {
		return Device{}, err
	}

	devices := pgIdent(s.schema, "devices")

	var d Device
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, device_id, created_at, last_active
		   FROM `+devices+`
		  WHERE id = $1`,
		strings.TrimSpace(id),
	).Scan(&d.ID, &d.Email, &d.DeviceID, &d.CreatedAt, &d.LastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, NotFoundError{Op: op, Resource: "device"}
		}
		return Device{}, err
	}
	return d, nil
}

// TouchDevice implements Store.
func (s *PostgresStore) TouchDevice(ctx context.Context, id string, now time.Time) error {
	const op = "identity.TouchDevice"

	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	devices := pgIdent(s.schema, "devices")

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+devices+` SET last_active = $2 WHERE id = $1`,
		strings.TrimSpace(id), now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "device"}
	}
	return nil
}

func (s *PostgresStore) getByPair(ctx context.Context, devices, emailNorm, deviceID string) (Device, error) {
	const op = "identity.getByPair"

	var d Device
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, device_id, created_at, last_active
		   FROM `+devices+`
		  WHERE email = $1 AND device_id = $2`,
		emailNorm, deviceID,
	).Scan(&d.ID, &d.Email, &d.DeviceID, &d.CreatedAt, &d.LastActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Device{}, NotFoundError{Op: op, Resource: "device"}
		}
		return Device{}, err
	}
	return d, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

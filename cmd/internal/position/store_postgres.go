package position

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements position persistence over PostgreSQL.
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the position store (default "trackd").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("position: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "trackd"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("position: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "positions"}.Sanitize()
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, p Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, user_id, email, device_id, lat, lng, accuracy, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID, p.Email, p.DeviceID, p.Lat, p.Lng, p.Accuracy, p.Timestamp,
	)
	return err
}

// ListByEmail implements Store.
func (s *PostgresStore) ListByEmail(ctx context.Context, email string, q Query) ([]Position, error) {
	return s.list(ctx, q, `email = $1`, email)
}

// ListByDevice implements Store.
func (s *PostgresStore) ListByDevice(ctx context.Context, deviceID string, q Query) ([]Position, error) {
	return s.list(ctx, q, `device_id = $1`, deviceID)
}

// ListByOwner implements Store.
func (s *PostgresStore) ListByOwner(ctx context.Context, email, deviceID string, q Query) ([]Position, error) {
	return s.list(ctx, q, `email = $1 AND device_id = $2`, email, deviceID)
}

func (s *PostgresStore) list(ctx context.Context, q Query, where string, args ...any) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.Normalize()

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	args = append(args, q.Limit, q.Offset())

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, email, device_id, lat, lng, accuracy, ts
		   FROM `+s.table()+`
		  WHERE `+where+`
		  ORDER BY ts DESC
		  LIMIT $`+fmt.Sprint(limitArg)+` OFFSET $`+fmt.Sprint(offsetArg),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.UserID, &p.Email, &p.DeviceID, &p.Lat, &p.Lng, &p.Accuracy, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation      = "23505" // unique_violation
	pgErrSerializationFailure = "40001" // serialization_failure
	pgErrDeadlockDetected     = "40P01" // deadlock_detected
	pgErrDiskFull             = "53100" // disk_full
	pgErrOutOfMemory          = "53200" // out_of_memory
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return pgErrorCode(err) == pgErrUniqueViolation
}

// isStorageFullError checks if the server ran out of room for the write.
func isStorageFullError(err error) bool {
	switch pgErrorCode(err) {
	case pgErrDiskFull, pgErrOutOfMemory:
		return true
	}
	return false
}

// isRetryableError checks if a serializable transaction lost a conflict.
func isRetryableError(err error) bool {
	switch pgErrorCode(err) {
	case pgErrSerializationFailure, pgErrDeadlockDetected:
		return true
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// numeric converts an unsigned amount to a NUMERIC parameter.
func numeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

// numericPtr converts an optional amount; nil becomes SQL NULL.
func numericPtr(v *uint64) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return numeric(*v)
}

var bigTen = big.NewInt(10)

// toUint64 converts a scanned NUMERIC(20,0) back to uint64.
func toUint64(n pgtype.Numeric) (uint64, error) {
	if !n.Valid || n.Int == nil {
		return 0, fmt.Errorf("numeric is null")
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric is not a finite number")
	}

	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(bigTen, big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		var rem big.Int
		v.QuoRem(v, new(big.Int).Exp(bigTen, big.NewInt(int64(-n.Exp)), nil), &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("numeric %s has a fractional part", n.Int)
		}
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("numeric %s out of uint64 range", v)
	}
	return v.Uint64(), nil
}

// toUint64Ptr converts a nullable NUMERIC; NULL becomes nil.
func toUint64Ptr(n pgtype.Numeric) (*uint64, error) {
	if !n.Valid {
		return nil, nil
	}
	v, err := toUint64(n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

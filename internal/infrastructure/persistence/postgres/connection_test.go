package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolearn-hub/ecolearn-backend/pkg/circuitbreaker"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func TestConnectivityFailureClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network error", errConnRefused, true},
		{"constraint violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg error", fmt.Errorf("save user: %w", &pgconn.PgError{Code: "23503"}), false},
		{"no rows", pgx.ErrNoRows, false},
		{"cancelled context", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectivityFailure(tt.err))
		})
	}
}

// tripBreaker feeds connectivity failures until the breaker opens.
func tripBreaker(t *testing.T, conn *Connection) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_ = conn.breaker.Execute(context.Background(), func(ctx context.Context) error {
			return errConnRefused
		})
	}
	require.True(t, conn.breaker.IsOpen())
}

func TestExecFailsFastWhenBreakerOpen(t *testing.T) {
	// No pool behind the connection: a fail-fast path must never reach it.
	conn := &Connection{breaker: newDatabaseBreaker()}
	tripBreaker(t, conn)

	_, err := conn.Exec(context.Background(), "UPDATE users SET xp = xp")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)

	_, err = conn.Query(context.Background(), "SELECT username FROM users")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestQueryRowFailsFastWhenBreakerOpen(t *testing.T) {
	conn := &Connection{breaker: newDatabaseBreaker()}
	tripBreaker(t, conn)

	var username string
	err := conn.QueryRow(context.Background(), "SELECT username FROM users LIMIT 1").Scan(&username)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestStatementErrorsDoNotTripBreaker(t *testing.T) {
	conn := &Connection{breaker: newDatabaseBreaker()}

	// Statement-level failures: the server is up, the breaker stays closed.
	for i := 0; i < 5; i++ {
		_ = conn.breaker.Execute(context.Background(), func(ctx context.Context) error {
			return &pgconn.PgError{Code: "23505"}
		})
	}
	assert.True(t, conn.breaker.IsClosed())
}

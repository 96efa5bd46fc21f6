package postgres

import (
	"context"
	"database/sql"
)

// Querier is the statement surface the advisor_state document store needs
type Querier interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Client adds connection lifecycle and health probing to Querier
type Client interface {
	Querier

	Connect(ctx context.Context) error
	Disconnect() error

	// HealthCheck pings the database and reports pool statistics
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

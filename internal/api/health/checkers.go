package health

import (
	"context"
	"database/sql"
	"fmt"
)

// DBChecker pings a database/sql handle, reported under a caller-chosen
// name so one type covers any sql driver.
type DBChecker struct {
	name string
	db   *sql.DB
}

// NewDBChecker wraps db in a readiness check named name.
func NewDBChecker(name string, db *sql.DB) *DBChecker {
	return &DBChecker{name: name, db: db}
}

// Name returns the name the check reports under.
func (c *DBChecker) Name() string { return c.name }

// Check pings the database.
func (c *DBChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("%s: database not initialized", c.name)
	}
	return c.db.PingContext(ctx)
}

// Pinger is satisfied by clients with a native ping, such as the
// ClickHouse connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a Pinger into a readiness check.
type PingChecker struct {
	name   string
	target Pinger
}

// NewPingChecker wraps target in a readiness check named name.
func NewPingChecker(name string, target Pinger) *PingChecker {
	return &PingChecker{name: name, target: target}
}

// Name returns the name the check reports under.
func (c *PingChecker) Name() string { return c.name }

// Check pings the target.
func (c *PingChecker) Check(ctx context.Context) error {
	if c.target == nil {
		return fmt.Errorf("%s: not configured", c.name)
	}
	return c.target.Ping(ctx)
}

// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

// Storage is the main interface for incident database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Incidents() IncidentRepository
	Counters() CounterRepository
}

// IncidentRepository defines operations for the incident record store.
// Incidents are insert-only; there is no update or delete of single rows.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	List(ctx context.Context, filter *IncidentFilter) (*IncidentPage, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountBySeverity(ctx context.Context) (map[models.Severity]int64, error)
	CountByRule(ctx context.Context) (map[models.RuleID]int64, error)
	TopSources(ctx context.Context, limit int) ([]*SourceCount, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// CounterRepository defines operations for per-source attempt counters.
type CounterRepository interface {
	// Increment atomically increments the counter for the given source
	// and window and returns the post-increment count. The counter row
	// is created on first increment.
	Increment(ctx context.Context, source string, windowStart, now time.Time) (int64, error)

	// Get returns the counter for the given source and window, or nil
	// when no attempts were recorded.
	Get(ctx context.Context, source string, windowStart time.Time) (*models.AttemptCounter, error)

	// DeleteExpired removes counters whose window started before the
	// given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// IncidentFilter defines query parameters for incident retrieval.
type IncidentFilter struct {
	// Optional filters.
	Source   string
	Rule     models.RuleID
	Severity models.Severity

	// Time range on created_at.
	Since time.Time
	Until time.Time

	// Pagination.
	Limit  int
	Offset int
}

// IncidentPage contains query results with pagination info.
type IncidentPage struct {
	// Incidents contains the matching records, newest first.
	Incidents []*models.Incident

	// Total is the total number of matching records.
	Total int64

	// HasMore indicates if there are more results available.
	HasMore bool
}

// SourceCount is an incident count for a single log source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

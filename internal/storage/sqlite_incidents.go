package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

type sqliteIncidentRepo struct {
	db *sql.DB
}

func (r *sqliteIncidentRepo) Create(ctx context.Context, incident *models.Incident) error {
	findingsJSON, err := json.Marshal(incident.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}

	var metaJSON sql.NullString
	if len(incident.Meta) > 0 {
		data, err := json.Marshal(incident.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO incidents (id, created_at, log_source, findings_json,
			severity, message_excerpt, evidence_path, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		incident.ID, incident.CreatedAt.UTC(), incident.LogSource, string(findingsJSON),
		incident.Severity, incident.MessageExcerpt,
		nullString(incident.EvidencePath), metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (r *sqliteIncidentRepo) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	query := `
		SELECT id, created_at, log_source, findings_json, severity,
			message_excerpt, evidence_path, meta_json
		FROM incidents WHERE id = ?
	`
	return r.scanIncident(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteIncidentRepo) List(ctx context.Context, filter *IncidentFilter) (*IncidentPage, error) {
	if filter == nil {
		filter = &IncidentFilter{}
	}

	query, args := r.buildQuery(filter, false)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []*models.Incident
	for rows.Next() {
		incident, err := r.scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	countQuery, countArgs := r.buildQuery(filter, true)
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count incidents: %w", err)
	}

	return &IncidentPage{
		Incidents: incidents,
		Total:     total,
		HasMore:   int64(filter.Offset+len(incidents)) < total,
	}, nil
}

func (r *sqliteIncidentRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return count, nil
}

func (r *sqliteIncidentRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM incidents WHERE created_at >= ?", since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count incidents since: %w", err)
	}
	return count, nil
}

func (r *sqliteIncidentRepo) CountBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT severity, COUNT(*) FROM incidents GROUP BY severity",
	)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	result := make(map[models.Severity]int64)
	for rows.Next() {
		var severity models.Severity
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		result[severity] = count
	}
	return result, rows.Err()
}

// CountByRule expands the findings_json arrays with json_each so a
// single incident contributes to every rule it matched.
func (r *sqliteIncidentRepo) CountByRule(ctx context.Context) (map[models.RuleID]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT je.value, COUNT(*)
		FROM incidents, json_each(incidents.findings_json) AS je
		GROUP BY je.value
	`)
	if err != nil {
		return nil, fmt.Errorf("count by rule: %w", err)
	}
	defer rows.Close()

	result := make(map[models.RuleID]int64)
	for rows.Next() {
		var rule models.RuleID
		var count int64
		if err := rows.Scan(&rule, &count); err != nil {
			return nil, fmt.Errorf("scan rule count: %w", err)
		}
		result[rule] = count
	}
	return result, rows.Err()
}

func (r *sqliteIncidentRepo) TopSources(ctx context.Context, limit int) ([]*SourceCount, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT log_source, COUNT(*) AS c
		FROM incidents
		GROUP BY log_source
		ORDER BY c DESC, log_source ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top sources: %w", err)
	}
	defer rows.Close()

	var sources []*SourceCount
	for rows.Next() {
		sc := &SourceCount{}
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		sources = append(sources, sc)
	}
	return sources, rows.Err()
}

func (r *sqliteIncidentRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM incidents WHERE created_at < ?", before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete incidents: %w", err)
	}
	return result.RowsAffected()
}

// buildQuery constructs the SQL query based on filter.
func (r *sqliteIncidentRepo) buildQuery(filter *IncidentFilter, countOnly bool) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	if countOnly {
		sb.WriteString("SELECT COUNT(*) FROM incidents")
	} else {
		sb.WriteString(`
			SELECT id, created_at, log_source, findings_json, severity,
				message_excerpt, evidence_path, meta_json
			FROM incidents
		`)
	}

	var conditions []string

	if filter.Source != "" {
		conditions = append(conditions, "log_source = ?")
		args = append(args, filter.Source)
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.Rule != "" {
		// Match against the JSON findings array.
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(incidents.findings_json) WHERE value = ?)")
		args = append(args, filter.Rule)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if countOnly {
		return sb.String(), args
	}

	sb.WriteString(" ORDER BY created_at DESC, id DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	if filter.Offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
	}

	return sb.String(), args
}

func (r *sqliteIncidentRepo) scanIncident(row *sql.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	var findingsJSON string
	var evidencePath, metaJSON sql.NullString

	err := row.Scan(
		&incident.ID, &incident.CreatedAt, &incident.LogSource, &findingsJSON,
		&incident.Severity, &incident.MessageExcerpt, &evidencePath, &metaJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	return r.finishIncident(incident, findingsJSON, evidencePath, metaJSON)
}

func (r *sqliteIncidentRepo) scanIncidentRow(rows *sql.Rows) (*models.Incident, error) {
	incident := &models.Incident{}
	var findingsJSON string
	var evidencePath, metaJSON sql.NullString

	err := rows.Scan(
		&incident.ID, &incident.CreatedAt, &incident.LogSource, &findingsJSON,
		&incident.Severity, &incident.MessageExcerpt, &evidencePath, &metaJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	return r.finishIncident(incident, findingsJSON, evidencePath, metaJSON)
}

func (r *sqliteIncidentRepo) finishIncident(incident *models.Incident, findingsJSON string, evidencePath, metaJSON sql.NullString) (*models.Incident, error) {
	if err := json.Unmarshal([]byte(findingsJSON), &incident.Findings); err != nil {
		return nil, fmt.Errorf("unmarshal findings: %w", err)
	}

	incident.EvidencePath = evidencePath.String

	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &incident.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}

	return incident, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

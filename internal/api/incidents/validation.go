package incidents

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/logwarden/logwarden/internal/models"
	"github.com/logwarden/logwarden/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func validateID(id string) error {
	if id == "" {
		return errors.New("id is required")
	}
	if len(id) > 64 {
		return errors.New("id must be 64 characters or less")
	}
	return nil
}

func validateSeverity(s string) (models.Severity, error) {
	switch s {
	case "low", "medium", "high", "critical":
		return models.Severity(s), nil
	default:
		return "", errors.New("severity must be 'low', 'medium', 'high', or 'critical'")
	}
}

// filterFromQuery builds an incident filter from list query parameters.
func filterFromQuery(q url.Values) (*storage.IncidentFilter, error) {
	filter := &storage.IncidentFilter{Limit: defaultLimit}

	if source := q.Get("source"); source != "" {
		filter.Source = source
	}
	if rule := q.Get("rule"); rule != "" {
		filter.Rule = models.RuleID(rule)
	}
	if sev := q.Get("severity"); sev != "" {
		severity, err := validateSeverity(sev)
		if err != nil {
			return nil, err
		}
		filter.Severity = severity
	}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, errors.New("invalid since time format (use RFC3339)")
		}
		filter.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, errors.New("invalid until time format (use RFC3339)")
		}
		filter.Until = t
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Since.After(filter.Until) {
		return nil, errors.New("since must be before until")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > maxLimit {
			return nil, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		filter.Limit = limit
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return nil, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}

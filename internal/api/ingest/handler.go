// Package ingest implements the webhook endpoint that turns log
// messages into incidents.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/logwarden/logwarden/internal/api/middleware"
	"github.com/logwarden/logwarden/internal/bruteforce"
	"github.com/logwarden/logwarden/internal/evidence"
	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/models"
	"github.com/logwarden/logwarden/internal/notifier"
	"github.com/logwarden/logwarden/internal/rules"
	"github.com/logwarden/logwarden/internal/storage"
)

// Defaults for ingest limits.
const (
	DefaultMaxBodyBytes = 1 << 20 // 1 MiB
	DefaultExcerptMax   = 800
)

// Config wires the ingest pipeline collaborators. Archiver, Dispatcher
// and Events may be nil when the corresponding subsystem is disabled.
type Config struct {
	Engine     *rules.Engine
	Incidents  storage.IncidentRepository
	Counter    *bruteforce.Counter
	Archiver   *evidence.Archiver
	Dispatcher *notifier.Dispatcher
	Events     *storage.EventBuffer

	MaxBodyBytes int64
	ExcerptMax   int

	// StrictPersistence escalates an incident store failure to a 500
	// instead of answering 201 with the in-memory incident.
	StrictPersistence bool
}

// Handler handles POST /api/v1/ingest.
type Handler struct {
	engine     *rules.Engine
	incidents  storage.IncidentRepository
	counter    *bruteforce.Counter
	archiver   *evidence.Archiver
	dispatcher *notifier.Dispatcher
	events     *storage.EventBuffer

	maxBody    int64
	excerptMax int
	strict     bool
}

// NewHandler creates the ingest handler.
func NewHandler(cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ExcerptMax <= 0 {
		cfg.ExcerptMax = DefaultExcerptMax
	}

	return &Handler{
		engine:     cfg.Engine,
		incidents:  cfg.Incidents,
		counter:    cfg.Counter,
		archiver:   cfg.Archiver,
		dispatcher: cfg.Dispatcher,
		events:     cfg.Events,
		maxBody:    cfg.MaxBodyBytes,
		excerptMax: cfg.ExcerptMax,
		strict:     cfg.StrictPersistence,
	}
}

// Response helpers (local to avoid import cycle with api package)

const (
	errBadRequest      = "bad_request"
	errPayloadTooLarge = "payload_too_large"
	errInternal        = "internal_error"
)

func jsonError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		OK      bool   `json:"ok"`
		Error   string `json:"error"`
		Details string `json:"details,omitempty"`
	}{false, message, details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// noFindingsResponse answers requests no rule matched.
type noFindingsResponse struct {
	OK       bool            `json:"ok"`
	Findings []models.RuleID `json:"findings"`
}

// incidentResponse answers requests that produced an incident.
type incidentResponse struct {
	OK         bool             `json:"ok"`
	Incident   *models.Incident `json:"incident"`
	BruteForce bool             `json:"bruteForce"`
}

// payload is the accepted JSON body shape. Every field is optional.
type payload struct {
	Message   string                 `json:"message"`
	Timestamp string                 `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta"`
}

// parseBody extracts message text, event time and metadata from the
// raw body. A JSON object prefers its message field and may carry a
// timestamp and meta; with no message field the compacted object text
// is the message. A bare JSON string is the message itself. Anything
// else is taken verbatim.
func parseBody(raw []byte, now time.Time) (string, time.Time, map[string]interface{}) {
	ts := now

	var p payload
	if err := json.Unmarshal(raw, &p); err == nil {
		if p.Timestamp != "" {
			if parsed, perr := time.Parse(time.RFC3339, p.Timestamp); perr == nil {
				ts = parsed
			}
		}
		if p.Message != "" {
			return p.Message, ts, p.Meta
		}
		var buf bytes.Buffer
		if cerr := json.Compact(&buf, raw); cerr == nil {
			return buf.String(), ts, p.Meta
		}
		return string(raw), ts, p.Meta
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, ts, nil
	}

	return string(raw), ts, nil
}

// truncateExcerpt bounds the message to max characters.
func truncateExcerpt(message string, max int) string {
	runes := []rune(message)
	if len(runes) <= max {
		return message
	}
	return string(runes[:max])
}

// Ingest processes one webhook call. The collaborators run strictly in
// archiver, recorder, counter, notifier order; a request that matches
// nothing touches none of them.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, http.StatusRequestEntityTooLarge, errPayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return
		}
		jsonError(w, http.StatusBadRequest, errBadRequest, "read request body")
		return
	}

	message, eventTime, meta := parseBody(raw, now)
	source := h.resolveSource(message, r)
	excerpt := truncateExcerpt(message, h.excerptMax)

	findings := h.engine.Evaluate(message)

	if len(findings) == 0 {
		h.recordEvent(r, source, false, nil, excerpt, now)
		metrics.IngestRequestsTotal.WithLabelValues("no_findings").Inc()
		writeJSON(w, http.StatusOK, noFindingsResponse{OK: true, Findings: []models.RuleID{}})
		return
	}

	ruleIDs := rules.RuleIDs(findings)

	incident := &models.Incident{
		ID:             uuid.New().String(),
		CreatedAt:      eventTime,
		LogSource:      source,
		Findings:       ruleIDs,
		Severity:       rules.HighestSeverity(findings),
		MessageExcerpt: excerpt,
		Meta:           meta,
	}

	// Archive before recording so the locator lands on the stored row.
	if h.archiver != nil {
		if locator, ok := h.archiver.Store(ctx, incident.ID, raw); ok {
			incident.EvidencePath = locator
			metrics.EvidenceArchivedTotal.Inc()
		} else {
			metrics.EvidenceErrorsTotal.Inc()
		}
	}

	if err := h.incidents.Create(ctx, incident); err != nil {
		log.Printf("incident %s create failed: %v", incident.ID, err)
		if h.strict {
			metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
			jsonError(w, http.StatusInternalServerError, errInternal, "incident persistence failed")
			return
		}
	}
	metrics.IncidentsTotal.WithLabelValues(string(incident.Severity)).Inc()
	for _, f := range findings {
		metrics.FindingsTotal.WithLabelValues(string(f.Rule)).Inc()
	}

	bruteForce := false
	if h.counter != nil && incident.HasFinding(models.RuleFailedLogin) {
		bruteForce = h.handleFailedLogin(ctx, source, eventTime, excerpt)
	}

	if incident.Severity == models.SeverityCritical {
		h.notify(ctx, incident)
	}

	h.recordEvent(r, source, true, ruleIDs, excerpt, now)

	metrics.IngestRequestsTotal.WithLabelValues("incident").Inc()
	writeJSON(w, http.StatusCreated, incidentResponse{OK: true, Incident: incident, BruteForce: bruteForce})
}

// resolveSource attributes the message to an origin: the first IPv4 in
// the text, then proxy headers, then the connection peer, then
// "unknown".
func (h *Handler) resolveSource(message string, r *http.Request) string {
	if addr := rules.ExtractSourceAddr(message); addr != "" {
		return addr
	}
	if addr := middleware.ClientIP(r); addr != "" {
		return addr
	}
	return "unknown"
}

// handleFailedLogin counts the attempt and, exactly on the crossing
// attempt, records a synthetic brute-force incident and notifies.
// Returns whether this attempt crossed the threshold.
func (h *Handler) handleFailedLogin(ctx context.Context, source string, now time.Time, excerpt string) bool {
	count, err := h.counter.Increment(ctx, source, now)
	if err != nil {
		log.Printf("attempt counter increment for %s failed: %v", source, err)
		return false
	}
	if !h.counter.Crosses(count) {
		return false
	}

	synthetic := &models.Incident{
		ID:             uuid.New().String(),
		CreatedAt:      now,
		LogSource:      source,
		Findings:       []models.RuleID{models.RuleBruteForce},
		Severity:       models.SeverityHigh,
		MessageExcerpt: excerpt,
		Meta: map[string]interface{}{
			"attempts": count,
			"window":   h.counter.Window().String(),
		},
	}

	if err := h.incidents.Create(ctx, synthetic); err != nil {
		// The crossing still happened; report it even if the record
		// could not be stored.
		log.Printf("brute-force incident %s create failed: %v", synthetic.ID, err)
	}
	metrics.IncidentsTotal.WithLabelValues(string(synthetic.Severity)).Inc()
	metrics.BruteForceTotal.Inc()

	h.notify(ctx, synthetic)
	return true
}

// notify dispatches a notification for the incident, best-effort.
func (h *Handler) notify(ctx context.Context, inc *models.Incident) {
	if h.dispatcher == nil {
		return
	}
	if err := h.dispatcher.Dispatch(ctx, notifier.FromIncident(inc)); err != nil {
		if errors.Is(err, notifier.ErrRateLimited) {
			metrics.NotificationsTotal.WithLabelValues("rate_limited").Inc()
		} else {
			metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		}
		log.Printf("notification for incident %s: %v", inc.ID, err)
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// recordEvent appends the call to the optional event archive.
func (h *Handler) recordEvent(r *http.Request, source string, matched bool, findings []models.RuleID, excerpt string, receivedAt time.Time) {
	if h.events == nil {
		return
	}
	event := &models.IngestEvent{
		ID:         uuid.New().String(),
		ReceivedAt: receivedAt,
		Remote:     r.RemoteAddr,
		LogSource:  source,
		Matched:    matched,
		Findings:   findings,
		Excerpt:    excerpt,
	}
	if err := h.events.Add(event); err != nil {
		log.Printf("event archive append failed: %v", err)
	}
}

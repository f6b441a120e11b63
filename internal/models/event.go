package models

import "time"

// IngestEvent is one authorized ingest call, recorded in the optional
// event archive. Archive writes happen off the request path and are
// never consulted by ingest decisions.
type IngestEvent struct {
	// ID is the unique event identifier (UUID).
	ID string `json:"id"`

	// ReceivedAt is when the call was accepted.
	ReceivedAt time.Time `json:"received_at"`

	// Remote is the connection peer address.
	Remote string `json:"remote"`

	// LogSource is the source attributed to the message.
	LogSource string `json:"log_source"`

	// Matched reports whether any rule matched.
	Matched bool `json:"matched"`

	// Findings lists matched rules, empty when Matched is false.
	Findings []RuleID `json:"findings,omitempty"`

	// Excerpt is a bounded prefix of the message.
	Excerpt string `json:"excerpt"`
}

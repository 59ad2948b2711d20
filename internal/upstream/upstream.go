// Package upstream defines the neutral contract between the sync pipeline
// and whichever portal adapter fulfills it.
package upstream

import (
	"context"
	"encoding/json"
	"time"
)

// Record is one citizen-request record as delivered by the portal, with the
// verbatim payload retained alongside the decoded fields.
type Record struct {
	ExternalID    string
	Text          string
	Status        string
	RequesterName string
	ContactInfo   string
	RequestType   string
	Region        string
	Category      string
	Organization  string
	Overdue       bool
	Deadline      *time.Time
	CreatedAt     time.Time

	// Raw is the unmodified JSON object the portal returned.
	Raw json.RawMessage
}

// Fetcher retrieves records updated within [from, to).
type Fetcher interface {
	Fetch(ctx context.Context, from, to time.Time) ([]Record, error)
}

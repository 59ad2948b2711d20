package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RawRecord is the durable, deduplicated copy of one external portal record.
// Exactly one RawRecord exists per ExternalID; re-ingestion refreshes the
// payload instead of creating a second row.
type RawRecord struct {
	ID         uuid.UUID
	ExternalID string
	// Payload is the verbatim external record as delivered by the portal.
	Payload    json.RawMessage
	IngestedAt time.Time
	// Processed becomes true once the record has been promoted into a card.
	Processed bool
	// Error holds the reason the last promotion attempt failed. A non-nil
	// Error with Processed=false means the next sync pass will retry.
	Error *string
	// CardID is a convenience backreference set at promotion time. The
	// authoritative link is TaskCard.RawRecordID.
	CardID *uuid.UUID
}

package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// externalRecord is the persisted payload shape of a raw record. It mirrors
// what the portal delivers; fields the portal omits decode to zero values.
type externalRecord struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	Status        string  `json:"status"`
	RequesterName string  `json:"requester_name"`
	Contact       string  `json:"contact"`
	RequestType   string  `json:"request_type"`
	Region        string  `json:"region"`
	Category      string  `json:"category"`
	Organization  string  `json:"organization"`
	Overdue       bool    `json:"overdue"`
	Deadline      *string `json:"deadline"`
	CreatedAt     string  `json:"created_at"`
}

// mappedCard is the normalized projection of an external record onto the
// card fields the lifecycle engine manages.
type mappedCard struct {
	Title         string
	Description   *string
	RequesterName *string
	ContactInfo   *string
	RequestType   *string
	Status        domain.CardStatus
	Priority      domain.Priority
	Deadline      *time.Time
	Metadata      map[string]string
}

// mapPayload decodes a raw record payload and normalizes it into card
// fields. Only a payload that is not valid JSON is an error; missing or
// malformed individual fields degrade to safe defaults so one bad field
// never blocks promotion.
func mapPayload(payload json.RawMessage) (*mappedCard, error) {
	var rec externalRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	title, description := splitTitle(rec.Text)

	mapped := &mappedCard{
		Title:         title,
		Description:   description,
		RequesterName: cleanField(rec.RequesterName),
		ContactInfo:   cleanField(rec.Contact),
		RequestType:   cleanField(rec.RequestType),
		Status:        domain.ParseUpstreamStatus(rec.Status),
		Priority:      domain.PriorityMedium,
		Metadata:      map[string]string{},
	}

	if rec.Overdue {
		mapped.Priority = domain.PriorityHigh
	}

	if rec.Deadline != nil {
		if t, err := time.Parse(time.RFC3339, *rec.Deadline); err == nil {
			mapped.Deadline = &t
		}
	}

	for key, value := range map[string]string{
		"region":       rec.Region,
		"category":     rec.Category,
		"organization": rec.Organization,
	} {
		if v := domain.NormalizeText(value); v != "" {
			mapped.Metadata[key] = v
		}
	}

	return mapped, nil
}

// splitTitle derives a title and description from the raw request text. The
// title is the first non-empty line, truncated to MaxTitleLen runes; the
// remaining lines become the description. A single-line text keeps the whole
// text as the description, and an empty text yields a placeholder title so
// the card is still visible to operators. The split happens on the repaired
// but uncollapsed text: NormalizeText would fold the line breaks away.
func splitTitle(text string) (string, *string) {
	repaired := strings.TrimSpace(domain.RepairEncoding(text))
	if repaired == "" {
		return "(без текста)", nil
	}

	first, rest := repaired, ""
	if idx := strings.IndexByte(repaired, '\n'); idx >= 0 {
		first, rest = repaired[:idx], repaired[idx+1:]
	}

	title := domain.NormalizeText(first)
	// Truncate by runes so Cyrillic text is never cut mid-character.
	if runes := []rune(title); len(runes) > MaxTitleLen {
		title = strings.TrimSpace(string(runes[:MaxTitleLen]))
	}

	description := domain.NormalizeText(rest)
	if description == "" {
		description = domain.NormalizeText(repaired)
	}
	return title, &description
}

// cleanField normalizes an optional text field, returning nil when empty.
func cleanField(s string) *string {
	v := domain.NormalizeText(s)
	if v == "" {
		return nil
	}
	return &v
}

// toCardUpdate projects the mapped fields onto a card refresh. Status is
// handled separately by the transition rules.
func (m *mappedCard) toCardUpdate() domain.CardUpdate {
	return domain.CardUpdate{
		Title:         m.Title,
		RequesterName: m.RequesterName,
		ContactInfo:   m.ContactInfo,
		RequestType:   m.RequestType,
		Description:   m.Description,
		Priority:      m.Priority,
		Deadline:      m.Deadline,
		Metadata:      m.Metadata,
	}
}

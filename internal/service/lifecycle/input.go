package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
)

// CreateCardInput holds the parameters for creating a card directly,
// bypassing ingestion. Used for requests raised internally.
type CreateCardInput struct {
	Title         string
	Description   *string
	RequesterName *string
	ContactInfo   *string
	RequestType   *string
	Priority      domain.Priority
	Department    *string
	Deadline      *time.Time
	Metadata      map[string]string
}

// Validate checks all fields and collects all errors.
func (i CreateCardInput) Validate() error {
	var errs []domain.FieldError

	title := strings.TrimSpace(i.Title)
	if title == "" {
		errs = append(errs, domain.FieldError{Field: "title", Message: "required"})
	}
	if len(title) > MaxTitleLen {
		errs = append(errs, domain.FieldError{Field: "title", Message: fmt.Sprintf("max %d characters", MaxTitleLen)})
	}

	if i.Description != nil && len(*i.Description) > MaxDescriptionLen {
		errs = append(errs, domain.FieldError{Field: "description", Message: fmt.Sprintf("max %d characters", MaxDescriptionLen)})
	}

	if i.Priority != "" && !i.Priority.IsValid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "unknown priority"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// TransitionInput holds the parameters for a status transition.
type TransitionInput struct {
	CardID  uuid.UUID
	Target  domain.CardStatus
	Comment *string
}

// Validate checks all fields and collects all errors.
func (i TransitionInput) Validate() error {
	var errs []domain.FieldError

	if i.CardID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "card_id", Message: "required"})
	}
	if !i.Target.IsValid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "unknown status"})
	}
	if i.Comment != nil && len(*i.Comment) > MaxCommentLen {
		errs = append(errs, domain.FieldError{Field: "comment", Message: fmt.Sprintf("max %d characters", MaxCommentLen)})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// AssignInput holds the parameters for assigning a card to an operator.
type AssignInput struct {
	CardID   uuid.UUID
	Assignee string
}

// Validate checks all fields and collects all errors.
func (i AssignInput) Validate() error {
	var errs []domain.FieldError

	if i.CardID == uuid.Nil {
		errs = append(errs, domain.FieldError{Field: "card_id", Message: "required"})
	}
	if strings.TrimSpace(i.Assignee) == "" {
		errs = append(errs, domain.FieldError{Field: "assignee", Message: "required"})
	}

	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

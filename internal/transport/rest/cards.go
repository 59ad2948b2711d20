package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/soloviev-m/civicdesk-backend/internal/domain"
	"github.com/soloviev-m/civicdesk-backend/internal/service/lifecycle"
)

// cardService defines the minimal interface needed by CardHandler.
type cardService interface {
	GetCard(ctx context.Context, id uuid.UUID) (*domain.TaskCard, error)
	ListCards(ctx context.Context, filter domain.CardFilter) ([]*domain.TaskCard, int, error)
	CreateCard(ctx context.Context, input lifecycle.CreateCardInput) (*domain.TaskCard, error)
	Transition(ctx context.Context, input lifecycle.TransitionInput) (*domain.TaskCard, error)
	Assign(ctx context.Context, input lifecycle.AssignInput) (*domain.TaskCard, error)
	GetHistory(ctx context.Context, cardID uuid.UUID) ([]*domain.HistoryEntry, error)
}

// CardHandler serves task card REST endpoints.
type CardHandler struct {
	svc cardService
	log *slog.Logger
}

// NewCardHandler creates a CardHandler.
func NewCardHandler(svc cardService, logger *slog.Logger) *CardHandler {
	return &CardHandler{svc: svc, log: logger.With("handler", "cards")}
}

type createCardRequest struct {
	Title         string            `json:"title"`
	Description   *string           `json:"description"`
	RequesterName *string           `json:"requesterName"`
	ContactInfo   *string           `json:"contactInfo"`
	RequestType   *string           `json:"requestType"`
	Priority      string            `json:"priority"`
	Department    *string           `json:"department"`
	Deadline      *time.Time        `json:"deadline"`
	Metadata      map[string]string `json:"metadata"`
}

type transitionRequest struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

type cardResponse struct {
	ID             string            `json:"id"`
	RawRecordID    *string           `json:"rawRecordId,omitempty"`
	Status         string            `json:"status"`
	AssignedTo     *string           `json:"assignedTo,omitempty"`
	Department     *string           `json:"department,omitempty"`
	Title          string            `json:"title"`
	RequesterName  *string           `json:"requesterName,omitempty"`
	ContactInfo    *string           `json:"contactInfo,omitempty"`
	RequestType    *string           `json:"requestType,omitempty"`
	Description    *string           `json:"description,omitempty"`
	Priority       string            `json:"priority"`
	Classification *string           `json:"classification,omitempty"`
	Suggestion     *string           `json:"suggestion,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Overdue        bool              `json:"overdue"`
	StartedAt      *time.Time        `json:"startedAt,omitempty"`
	CompletedAt    *time.Time        `json:"completedAt,omitempty"`
	ConfirmedAt    *time.Time        `json:"confirmedAt,omitempty"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

type cardListResponse struct {
	Cards []cardResponse `json:"cards"`
	Total int            `json:"total"`
}

type historyEntryResponse struct {
	ID             string    `json:"id"`
	PreviousStatus *string   `json:"previousStatus,omitempty"`
	NewStatus      string    `json:"newStatus"`
	ActorID        *string   `json:"actorId,omitempty"`
	Comment        *string   `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// List handles GET /cards.
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards, total, err := h.svc.ListCards(r.Context(), filter)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := cardListResponse{Cards: make([]cardResponse, 0, len(cards)), Total: total}
	for _, card := range cards {
		resp.Cards = append(resp.Cards, toCardResponse(card))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /cards/{id}.
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	card, err := h.svc.GetCard(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

// Create handles POST /cards.
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := h.svc.CreateCard(r.Context(), lifecycle.CreateCardInput{
		Title:         req.Title,
		Description:   req.Description,
		RequesterName: req.RequesterName,
		ContactInfo:   req.ContactInfo,
		RequestType:   req.RequestType,
		Priority:      domain.Priority(req.Priority),
		Department:    req.Department,
		Deadline:      req.Deadline,
		Metadata:      req.Metadata,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardResponse(card))
}

// UpdateStatus handles POST /cards/{id}/status.
func (h *CardHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := h.svc.Transition(r.Context(), lifecycle.TransitionInput{
		CardID:  id,
		Target:  domain.CardStatus(req.Status),
		Comment: req.Comment,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

// Assign handles POST /cards/{id}/assign.
func (h *CardHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	card, err := h.svc.Assign(r.Context(), lifecycle.AssignInput{
		CardID:   id,
		Assignee: req.Assignee,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

// History handles GET /cards/{id}/history.
func (h *CardHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card id")
		return
	}

	entries, err := h.svc.GetHistory(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := historyEntryResponse{
			ID:        e.ID.String(),
			NewStatus: e.NewStatus.String(),
			ActorID:   e.ActorID,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt,
		}
		if e.PreviousStatus != nil {
			s := e.PreviousStatus.String()
			item.PreviousStatus = &s
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request) (domain.CardFilter, error) {
	var filter domain.CardFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := domain.CardStatus(v)
		filter.Status = &status
	}
	if v := q.Get("assignedTo"); v != "" {
		filter.AssignedTo = &v
	}
	if v := q.Get("department"); v != "" {
		filter.Department = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, domain.NewValidationError("limit", "must be an integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, domain.NewValidationError("offset", "must be an integer")
		}
		filter.Offset = n
	}

	return filter, nil
}

func toCardResponse(card *domain.TaskCard) cardResponse {
	resp := cardResponse{
		ID:             card.ID.String(),
		Status:         card.Status.String(),
		AssignedTo:     card.AssignedTo,
		Department:     card.Department,
		Title:          card.Title,
		RequesterName:  card.RequesterName,
		ContactInfo:    card.ContactInfo,
		RequestType:    card.RequestType,
		Description:    card.Description,
		Priority:       card.Priority.String(),
		Classification: card.Classification,
		Suggestion:     card.Suggestion,
		Metadata:       card.Metadata,
		Overdue:        card.IsOverdue(time.Now().UTC()),
		StartedAt:      card.StartedAt,
		CompletedAt:    card.CompletedAt,
		ConfirmedAt:    card.ConfirmedAt,
		Deadline:       card.Deadline,
		CreatedAt:      card.CreatedAt,
		UpdatedAt:      card.UpdatedAt,
	}
	if card.RawRecordID != nil {
		s := card.RawRecordID.String()
		resp.RawRecordID = &s
	}
	return resp
}

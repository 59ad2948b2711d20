package domain

import "strings"

// CardStatus represents the lifecycle status of a task card.
type CardStatus string

const (
	CardStatusNew                  CardStatus = "NEW"
	CardStatusInProgress           CardStatus = "IN_PROGRESS"
	CardStatusAwaitingConfirmation CardStatus = "AWAITING_CONFIRMATION"
	CardStatusDone                 CardStatus = "DONE"
)

func (s CardStatus) String() string { return string(s) }

func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusNew, CardStatusInProgress, CardStatusAwaitingConfirmation, CardStatusDone:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s CardStatus) IsTerminal() bool { return s == CardStatusDone }

// allowedTransitions is the single source of truth for the card state machine.
// A future reopen edge (DONE -> IN_PROGRESS) would be one more row here.
var allowedTransitions = map[CardStatus][]CardStatus{
	CardStatusNew:                  {CardStatusInProgress},
	CardStatusInProgress:           {CardStatusAwaitingConfirmation, CardStatusDone},
	CardStatusAwaitingConfirmation: {CardStatusDone},
	CardStatusDone:                 {},
}

// CanTransitionTo reports whether the edge s -> target is allowed.
func (s CardStatus) CanTransitionTo(target CardStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Priority represents the urgency of a task card.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// upstreamStatuses translates the portal's status vocabulary into CardStatus.
// Keys are normalized (lowercased, whitespace-collapsed) before lookup.
var upstreamStatuses = map[string]CardStatus{
	"новое":                  CardStatusNew,
	"зарегистрировано":       CardStatusNew,
	"new":                    CardStatusNew,
	"в процессе":             CardStatusInProgress,
	"в работе":               CardStatusInProgress,
	"in progress":            CardStatusInProgress,
	"ожидает подтверждения":  CardStatusAwaitingConfirmation,
	"на подтверждении":       CardStatusAwaitingConfirmation,
	"awaiting confirmation":  CardStatusAwaitingConfirmation,
	"выполнено":              CardStatusDone,
	"закрыто":                CardStatusDone,
	"done":                   CardStatusDone,
}

// ParseUpstreamStatus maps an upstream status string to a CardStatus.
// Unrecognized values fall back to CardStatusNew; this is the only place
// where the fallback rule lives.
func ParseUpstreamStatus(raw string) CardStatus {
	key := strings.ToLower(NormalizeText(raw))
	if status, ok := upstreamStatuses[key]; ok {
		return status
	}
	return CardStatusNew
}

package domain

// CardFilter contains filtering/pagination parameters for card listings.
type CardFilter struct {
	Status     *CardStatus
	AssignedTo *string
	Department *string
	Limit      int
	Offset     int
}

const (
	defaultCardLimit = 50
	maxCardLimit     = 200
)

// Normalize applies defaults and clamps pagination values.
func (f *CardFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultCardLimit
	}
	if f.Limit > maxCardLimit {
		f.Limit = maxCardLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

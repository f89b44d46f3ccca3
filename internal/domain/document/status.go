package document

// Status is the lifecycle state of a document version.
type Status string

// Lifecycle states.
const (
	StatusDraft    Status = "draft"
	StatusStaged   Status = "staged"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// transitions is the fixed table of legal lifecycle moves. Anything not
// listed here is rejected; there is no coercion path between states.
// archived -> draft is the rollback edge and always materializes as a new
// version rather than reanimating the archived one.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusStaged},
	StatusStaged:   {StatusActive, StatusArchived},
	StatusActive:   {StatusArchived},
	StatusArchived: {StatusDraft},
}

// IsValid reports whether s is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusStaged, StatusActive, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package round

import (
	"time"
)

type State uint8

const (
	Collecting State = iota
	Aggregating
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Aggregating:
		return "aggregating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseState maps the wire representation back to a State. Unknown
// values come back as Collecting together with false.
func ParseState(s string) (State, bool) {
	switch s {
	case "collecting":
		return Collecting, true
	case "aggregating":
		return Aggregating, true
	case "completed":
		return Completed, true
	case "failed":
		return Failed, true
	default:
		return Collecting, false
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *State) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	parsed, _ := ParseState(str)
	*s = parsed

	return nil
}

// Terminal reports whether the round can no longer change.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// Round is one training round. The cohort is fixed when the round opens
// and the deadline is a wall-clock instant set at the same moment; once
// the state is terminal the round is read-only history.
type Round struct {
	ID           uint64    `json:"id"`
	State        State     `json:"state"`
	Cohort       []string  `json:"cohort"`
	Submitted    []string  `json:"submitted,omitempty"`
	StartTime    time.Time `json:"start_time"`
	FinishTime   time.Time `json:"finish_time,omitzero"`
	Deadline     time.Time `json:"deadline"`
	ModelVersion uint64    `json:"model_version,omitempty"`
	FailReason   string    `json:"fail_reason,omitempty"`
}

// Participant reports whether the client is part of the fixed cohort.
func (r Round) Participant(clientID string) bool {
	for _, id := range r.Cohort {
		if id == clientID {
			return true
		}
	}

	return false
}

type Page struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

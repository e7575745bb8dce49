package client

import (
	"time"
)

type Status uint8

const (
	Active Status = iota
	Training
	Inactive
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Training:
		return "training"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire representation back to a Status. Unknown
// values come back as Inactive together with false.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "active":
		return Active, true
	case "training":
		return Training, true
	case "inactive":
		return Inactive, true
	default:
		return Inactive, false
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	parsed, _ := ParseStatus(str)
	*s = parsed

	return nil
}

// Client is one registered training participant. Records are created on
// registration and refreshed on every heartbeat; they are never deleted,
// only aged out of liveness queries.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location,omitempty"`
	DatasetSize  uint64    `json:"dataset_size"`
	ModelType    string    `json:"model_type,omitempty"`
	Status       Status    `json:"status"`
	LastSeen     time.Time `json:"last_seen"`
	ModelVersion uint64    `json:"model_version"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AliveWithin reports whether the client heartbeated inside the
// liveness window ending at now.
func (c Client) AliveWithin(window time.Duration, now time.Time) bool {
	return now.Sub(c.LastSeen) <= window
}

type Page struct {
	Offset  uint64   `json:"offset"`
	Limit   uint64   `json:"limit"`
	Total   uint64   `json:"total"`
	Clients []Client `json:"clients"`
}

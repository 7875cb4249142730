package attendance

import "time"

// Status of a student for one class day.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
)

// Valid returns true when the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// Token is a short-lived check-in credential scoped to one class. It is read
// until expiry and never mutated or deleted; any number of enrolled students
// may redeem the same token while it is active.
type Token struct {
	Code      string    `json:"code"`
	ClassID   string    `json:"class_id"`
	IssuedBy  string    `json:"issued_by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Record is one student's attendance for one class on one calendar day.
// Day is a "2006-01-02" date in the service's configured location.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	Day       string    `json:"day"`
	Status    Status    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
	TokenCode string    `json:"token_code,omitempty"`
}

// RosterEntry is an enrolled student as seen by summaries.
type RosterEntry struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
}

// StudentStatus pairs a roster entry with its resolved status for a day.
type StudentStatus struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
}

// Summary is the per-class attendance tally for one day.
type Summary struct {
	ClassID  string          `json:"class_id"`
	Day      string          `json:"day"`
	Students []StudentStatus `json:"students"`
	Present  int             `json:"present"`
	Absent   int             `json:"absent"`
	Late     int             `json:"late"`
	Percent  float64         `json:"percentage"`
}

// StudentSummary is one student's history with an attendance percentage.
type StudentSummary struct {
	StudentID string   `json:"student_id"`
	Records   []Record `json:"records"`
	Percent   float64  `json:"percentage"`
}

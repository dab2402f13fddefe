package attendance

import (
	"time"

	"meeting/internal/domain"
)

// Status of one member on one date.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record is a stored attendance row.
type Record struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	Date         time.Time `json:"date"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Submission replaces every record of a class on one date.
type Submission struct {
	ClassID  int64
	Date     time.Time
	Statuses map[string]Status
	Notes    map[string]string
}

func (s Submission) validate() error {
	for id, st := range s.Statuses {
		if !st.Valid() {
			return domain.Invalid("statuses", "출석 상태가 올바르지 않습니다: "+id)
		}
	}
	for id, note := range s.Notes {
		if _, ok := s.Statuses[id]; !ok {
			return domain.ErrForeignEnrollment
		}
		if len([]rune(note)) > 500 {
			return domain.Invalid("notes", "메모는 500자 이하여야 합니다.")
		}
	}
	return nil
}

// RecordResult summarises a submission.
type RecordResult struct {
	ClassID int64     `json:"class_id"`
	Date    time.Time `json:"date"`
	Removed int       `json:"removed"`
	Written int       `json:"written"`
}

// ClassRef identifies the class being recorded and who teaches it.
type ClassRef struct {
	ID           int64
	InstructorID string
}

// SheetRow is one enrolled member on the attendance sheet.
type SheetRow struct {
	EnrollmentID string  `json:"enrollment_id"`
	MemberID     string  `json:"member_id"`
	MemberName   string  `json:"member_name"`
	Status       *Status `json:"status,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

// HistoryEntry is one record on a member's profile.
type HistoryEntry struct {
	Record
	ClassID   int64  `json:"class_id"`
	ClassName string `json:"class_name"`
}

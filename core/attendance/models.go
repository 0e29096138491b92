package attendance

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
)

// Registration states.
type State string

const (
	StatePresent State = "PRESENT"
	StateLate    State = "LATE"
	StateAbsent  State = "ABSENT"
	StateExcused State = "EXCUSED"
)

func (s State) Valid() bool {
	switch s {
	case StatePresent, StateLate, StateAbsent, StateExcused:
		return true
	}
	return false
}

var (
	// errors
	ErrSessionNotFound       = errors.New("session not found")
	ErrNoActiveSession       = errors.New("no active session for this class right now")
	ErrDuplicateSession      = errors.New("a session already exists for this class and date")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrDuplicateRegistration = errors.New("attendance already registered for this session")
	ErrCoordinatesRequired   = errors.New("location coordinates are required")
	ErrInvalidState          = errors.New("invalid attendance state")
)

type (
	// Session is one held class meeting of an Offering on a given date.
	Session struct {
		ID         string         `json:"id" db:"id"`
		OfferingID string         `json:"offering_id" db:"offering_id"`
		Date       time.Time      `json:"date" db:"date"` // civil date
		StartTime  core.TimeOfDay `json:"start_time" db:"start_time"`
		EndTime    core.TimeOfDay `json:"end_time" db:"end_time"`
		Topic      string         `json:"topic,omitempty" db:"topic"`
		CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	}

	// Registration is a student's attendance record for a Session. Latitude
	// and Longitude are kept as evidence of where the scan happened.
	Registration struct {
		ID         string    `json:"id" db:"id"`
		StudentID  string    `json:"student_id" db:"student_id"`
		SessionID  string    `json:"session_id" db:"session_id"`
		RecordedAt time.Time `json:"recorded_at" db:"recorded_at"` // UTC; zero for synthesized absences
		Latitude   *float64  `json:"latitude,omitempty" db:"latitude"`
		Longitude  *float64  `json:"longitude,omitempty" db:"longitude"`
		State      State     `json:"state" db:"state"`
		PermitID   *string   `json:"permit_id,omitempty" db:"permit_id"`

		StudentName string `json:"student_name,omitempty" db:"student_name"` // joined, read-only
	}

	NewSession struct {
		OfferingID string `json:"offering_id" validate:"required,uuid4"`
		Topic      string `json:"topic"`
	}
)

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Topic = core.CleanString(ns.Topic)
	return validate.Struct(ns)
}

// WrongDayError rejects opening a session on a weekday the class is not
// scheduled for.
type WrongDayError struct {
	Scheduled time.Weekday
	Actual    time.Weekday
}

func (e *WrongDayError) Error() string {
	return fmt.Sprintf("class meets on %s, not %s", e.Scheduled, e.Actual)
}

// OutsideWindowError rejects opening a session outside the allowed window.
// Start and End are the offering's own schedule; the pre-open margin widens
// the check but is not surfaced to the teacher.
type OutsideWindowError struct {
	Start core.TimeOfDay // scheduled start
	End   core.TimeOfDay // scheduled end, exclusive
}

func (e *OutsideWindowError) Error() string {
	return fmt.Sprintf("sessions can only be opened between %s and %s", e.Start, e.End)
}

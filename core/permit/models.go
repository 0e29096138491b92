package permit

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mkabenga/presencia/core"
)

// Permit states.
type State string

const (
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
)

// Permit is a student's absence-excuse request. Once approved, a registration
// that links it and whose session is in CoveredSessionIDs resolves to EXCUSED.
type Permit struct {
	ID          string    `json:"id" db:"id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	ApproverID  string    `json:"approver_id,omitempty" db:"approver_id"` // admin profile ID, set on decision
	Reason      string    `json:"reason" db:"reason"`
	State       State     `json:"state" db:"state"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"` // UTC
	StartDate   time.Time `json:"start_date" db:"start_date"`     // civil date
	EndDate     time.Time `json:"end_date" db:"end_date"`         // civil date; zero = open-ended

	CoveredSessionIDs []string `json:"covered_session_ids" db:"-"`
}

// Decided reports whether the permit has left PENDING; covered sessions are
// frozen from that point on.
func (p *Permit) Decided() bool { return p.State != StatePending }

func (p *Permit) Covers(sessionID string) bool {
	for _, id := range p.CoveredSessionIDs {
		if id == sessionID {
			return true
		}
	}
	return false
}

type NewPermit struct {
	Reason            string   `json:"reason" validate:"required"`
	StartDate         string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate           string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	CoveredSessionIDs []string `json:"covered_session_ids" validate:"omitempty,dive,uuid4"`

	start, end time.Time
}

func (np *NewPermit) Validate(validate *validator.Validate) error {
	np.Reason = core.CleanString(np.Reason)
	if err := validate.Struct(np); err != nil {
		return err
	}
	np.start, _ = time.ParseInLocation("2006-01-02", np.StartDate, time.UTC)
	if np.EndDate != "" {
		np.end, _ = time.ParseInLocation("2006-01-02", np.EndDate, time.UTC)
		if np.end.Before(np.start) {
			return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "must not be before start_date"})
		}
	}
	return nil
}

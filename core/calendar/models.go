package calendar

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mkabenga/presencia/core"
)

// Special day kinds.
type Kind string

const (
	KindHoliday   Kind = "HOLIDAY"
	KindNoClasses Kind = "NO_CLASSES"
	KindSuspended Kind = "SUSPENDED"
)

var kindLabels = map[Kind]string{
	KindHoliday:   "Holiday",
	KindNoClasses: "No-classes day",
	KindSuspended: "Activity suspension",
}

func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// SpecialDay is a calendar exception. When AffectsAttendance is set, no
// session may be opened and no registration accepted on Date.
type SpecialDay struct {
	ID                string    `json:"id" db:"id"`
	Date              time.Time `json:"date" db:"date"` // civil date
	Kind              Kind      `json:"kind" db:"kind"`
	Description       string    `json:"description" db:"description"`
	AffectsAttendance bool      `json:"affects_attendance" db:"affects_attendance"`
	CreatedBy         string    `json:"created_by,omitempty" db:"created_by"` // admin profile ID
	CreatedAt         time.Time `json:"created_at" db:"created_at"`           // UTC
}

// BlockedError is the hard-gate rejection raised when class activity is
// attempted on an affecting special day. Its message is user-displayable.
type BlockedError struct {
	Kind        Kind
	Description string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("no class activity allowed on a special day: %s - %s", e.Kind.Label(), e.Description)
}

type NewSpecialDay struct {
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Kind              Kind   `json:"kind" validate:"required,oneof=HOLIDAY NO_CLASSES SUSPENDED"`
	Description       string `json:"description" validate:"required"`
	AffectsAttendance *bool  `json:"affects_attendance"`

	date time.Time
}

func (nd *NewSpecialDay) Validate(validate *validator.Validate) error {
	nd.Description = core.CleanString(nd.Description)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	nd.date, _ = time.ParseInLocation("2006-01-02", nd.Date, time.UTC)
	return nil
}

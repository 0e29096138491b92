package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mkabenga/presencia/core"
)

type (
	// Program is a degree program students belong to (e.g. "Computer Science").
	Program struct {
		ID   string `json:"id" db:"id"`
		Name string `json:"name" db:"name"`
	}

	// Term is a semester within a Program; its name is unique per program
	// (e.g. "2025-1" may exist in several programs).
	Term struct {
		ID        string `json:"id" db:"id"`
		Name      string `json:"name" db:"name"`
		ProgramID string `json:"program_id" db:"program_id"`
	}

	Course struct {
		ID          string `json:"id" db:"id"`
		Name        string `json:"name" db:"name"`
		Description string `json:"description,omitempty" db:"description"`
	}

	// Offering is a Course taught within a Term during a management period,
	// on one weekday in one fixed time window.
	// Unique per (course, term, management period, start, end).
	Offering struct {
		ID               string         `json:"id"`
		CourseID         string         `json:"course_id"`
		TermID           string         `json:"term_id"`
		ManagementPeriod string         `json:"management_period"` // e.g. "2025/1", "II-2024"
		Weekday          time.Weekday   `json:"weekday"`
		StartTime        core.TimeOfDay `json:"start_time"`
		EndTime          core.TimeOfDay `json:"end_time"`

		CourseName string `json:"course_name,omitempty"` // joined, read-only
	}

	// Student is the student profile attached to a User. The (program, term)
	// pair determines which Offerings the student is expected to attend.
	Student struct {
		ID                string `json:"id" db:"id"`
		UserID            string `json:"user_id" db:"user_id"`
		InstitutionalCode string `json:"institutional_code" db:"institutional_code"`
		ProgramID         string `json:"program_id" db:"program_id"`
		TermID            string `json:"term_id" db:"term_id"` // current term

		Name  string `json:"name,omitempty" db:"name"`   // joined, read-only
		Email string `json:"email,omitempty" db:"email"` // joined, read-only
	}

	Teacher struct {
		ID         string `json:"id" db:"id"`
		UserID     string `json:"user_id" db:"user_id"`
		Speciality string `json:"speciality,omitempty" db:"speciality"`

		Name string `json:"name,omitempty" db:"name"` // joined, read-only
	}

	Admin struct {
		ID       string `json:"id" db:"id"`
		UserID   string `json:"user_id" db:"user_id"`
		Position string `json:"position,omitempty" db:"position"`

		Name string `json:"name,omitempty" db:"name"` // joined, read-only
	}

	// TeacherAssignment puts a Teacher in charge of an Offering.
	// Unique per (teacher, offering).
	TeacherAssignment struct {
		ID         string `json:"id" db:"id"`
		TeacherID  string `json:"teacher_id" db:"teacher_id"`
		OfferingID string `json:"offering_id" db:"offering_id"`
	}

	// Enrollment scopes a teacher's roster view of an Offering.
	// Unique per (student, offering).
	Enrollment struct {
		ID         string    `json:"id" db:"id"`
		StudentID  string    `json:"student_id" db:"student_id"`
		OfferingID string    `json:"offering_id" db:"offering_id"`
		EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"` // UTC
	}
)

type NewProgram struct {
	Name string `json:"name" validate:"required"`
}

func (np *NewProgram) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	return validate.Struct(np)
}

type NewTerm struct {
	Name      string `json:"name" validate:"required"`
	ProgramID string `json:"program_id" validate:"required,uuid4"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}

type NewCourse struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// NewOffering carries wall-clock times and the weekday as strings; they are
// parsed during validation.
type NewOffering struct {
	CourseID         string `json:"course_id" validate:"required,uuid4"`
	TermID           string `json:"term_id" validate:"required,uuid4"`
	ManagementPeriod string `json:"management_period" validate:"required"`
	Weekday          string `json:"weekday" validate:"required,weekday"`
	StartTime        string `json:"start_time" validate:"required,timeofday"`
	EndTime          string `json:"end_time" validate:"required,timeofday"`

	weekday    time.Weekday
	start, end core.TimeOfDay
}

func (no *NewOffering) Validate(validate *validator.Validate) error {
	no.ManagementPeriod = core.CleanString(no.ManagementPeriod)
	if err := validate.Struct(no); err != nil {
		return err
	}
	no.weekday, _ = core.ParseWeekday(no.Weekday)
	no.start, _ = core.ParseTimeOfDay(no.StartTime)
	no.end, _ = core.ParseTimeOfDay(no.EndTime)
	if no.end <= no.start {
		return core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "must be after start_time"})
	}
	return nil
}

type NewStudent struct {
	UserID            string `json:"user_id" validate:"required,uuid4"`
	InstitutionalCode string `json:"institutional_code" validate:"required"`
	ProgramID         string `json:"program_id" validate:"required,uuid4"`
	TermID            string `json:"term_id" validate:"required,uuid4"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.InstitutionalCode = core.CleanString(ns.InstitutionalCode)
	return validate.Struct(ns)
}

type NewTeacher struct {
	UserID     string `json:"user_id" validate:"required,uuid4"`
	Speciality string `json:"speciality"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Speciality = core.CleanString(nt.Speciality)
	return validate.Struct(nt)
}

type NewAdmin struct {
	UserID   string `json:"user_id" validate:"required,uuid4"`
	Position string `json:"position"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Position = core.CleanString(na.Position)
	return validate.Struct(na)
}

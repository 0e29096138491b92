package report

import (
	"time"

	"github.com/mkabenga/presencia/core/attendance"
)

type (
	// CourseSummary is one student's attendance tally for one offering.
	CourseSummary struct {
		OfferingID string  `json:"offering_id"`
		CourseName string  `json:"course_name"`
		Held       int     `json:"held"`
		Present    int     `json:"present"`
		Late       int     `json:"late"`
		Absent     int     `json:"absent"`
		Excused    int     `json:"excused"`
		Percentage float64 `json:"percentage"` // (present + late) / held * 100
	}

	// StudentSummary aggregates one student across their offerings.
	StudentSummary struct {
		StudentID string          `json:"student_id"`
		Name      string          `json:"name"`
		Code      string          `json:"code"`
		Courses   []CourseSummary `json:"courses"`
		Overall   float64         `json:"overall"` // attendance percentage across all courses
	}

	// GeneralRow is one student's line in an institution-wide summary,
	// sorted worst attendance first so at-risk students surface on top.
	GeneralRow struct {
		StudentID  string  `json:"student_id"`
		Name       string  `json:"name"`
		Code       string  `json:"code"`
		Held       int     `json:"held"`
		Attended   int     `json:"attended"` // present + late
		Percentage float64 `json:"percentage"`
	}

	GeneralSummary struct {
		ProgramID string       `json:"program_id,omitempty"`
		TermID    string       `json:"term_id,omitempty"`
		Rows      []GeneralRow `json:"rows"`
	}

	// RosterDocument is the printable form of a session roster.
	RosterDocument struct {
		CourseName string
		Date       time.Time
		StartTime  string
		EndTime    string
		Rows       []RosterRow
	}

	RosterRow struct {
		Name       string
		Code       string
		State      attendance.State
		RecordedAt string // local wall clock, empty when absent
	}

	// Renderer turns a roster into a downloadable document.
	Renderer interface {
		RenderRoster(doc RosterDocument) ([]byte, error)
	}
)

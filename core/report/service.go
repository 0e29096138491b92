package report

import (
	"context"
	"sort"
	"time"

	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
)

type Service struct {
	academic   *academic.Service
	attendance *attendance.Service
	renderer   Renderer
	loc        *time.Location
}

func NewService(academicSvc *academic.Service, attendanceSvc *attendance.Service, renderer Renderer, loc *time.Location) *Service {
	return &Service{academic: academicSvc, attendance: attendanceSvc, renderer: renderer, loc: loc}
}

func percentage(attended, held int) float64 {
	if held == 0 {
		return 0
	}
	return float64(attended) / float64(held) * 100
}

// StudentSummary tallies one student's attendance per enrolled offering. A
// session held without a registration counts as an absence.
func (svc *Service) StudentSummary(ctx context.Context, student academic.Student) (StudentSummary, error) {
	offerings, err := svc.academic.StudentOfferings(ctx, student)
	if err != nil {
		return StudentSummary{}, err
	}
	regs, err := svc.attendance.StudentHistory(ctx, student.ID)
	if err != nil {
		return StudentSummary{}, err
	}
	bySession := make(map[string]attendance.Registration, len(regs))
	for _, reg := range regs {
		bySession[reg.SessionID] = reg
	}

	summary := StudentSummary{StudentID: student.ID, Name: student.Name, Code: student.InstitutionalCode}
	var totalHeld, totalAttended int
	for _, off := range offerings {
		sessions, err := svc.attendance.SessionsByOffering(ctx, off.ID)
		if err != nil {
			return StudentSummary{}, err
		}
		cs := CourseSummary{OfferingID: off.ID, CourseName: off.CourseName, Held: len(sessions)}
		for _, sess := range sessions {
			state := attendance.StateAbsent
			if reg, ok := bySession[sess.ID]; ok {
				state = reg.State
			}
			switch state {
			case attendance.StatePresent:
				cs.Present++
			case attendance.StateLate:
				cs.Late++
			case attendance.StateExcused:
				cs.Excused++
			default:
				cs.Absent++
			}
		}
		cs.Percentage = percentage(cs.Present+cs.Late, cs.Held)
		totalHeld += cs.Held
		totalAttended += cs.Present + cs.Late
		summary.Courses = append(summary.Courses, cs)
	}
	summary.Overall = percentage(totalAttended, totalHeld)
	return summary, nil
}

// GeneralSummary tallies every student of a term (optionally a single
// program) across that term's offerings, worst attendance first.
func (svc *Service) GeneralSummary(ctx context.Context, programID, termID string) (GeneralSummary, error) {
	students, err := svc.academic.StudentsByTerm(ctx, termID)
	if err != nil {
		return GeneralSummary{}, err
	}
	offerings, err := svc.academic.QueryOfferingsByTerm(ctx, termID)
	if err != nil {
		return GeneralSummary{}, err
	}

	// held session count per offering, shared by every student of the term
	held := make(map[string]int, len(offerings))
	sessionIDs := make(map[string]map[string]struct{}, len(offerings)) // offering -> session set
	for _, off := range offerings {
		sessions, err := svc.attendance.SessionsByOffering(ctx, off.ID)
		if err != nil {
			return GeneralSummary{}, err
		}
		held[off.ID] = len(sessions)
		set := make(map[string]struct{}, len(sessions))
		for _, sess := range sessions {
			set[sess.ID] = struct{}{}
		}
		sessionIDs[off.ID] = set
	}

	summary := GeneralSummary{ProgramID: programID, TermID: termID}
	for _, st := range students {
		if programID != "" && st.ProgramID != programID {
			continue
		}
		regs, err := svc.attendance.StudentHistory(ctx, st.ID)
		if err != nil {
			return GeneralSummary{}, err
		}
		row := GeneralRow{StudentID: st.ID, Name: st.Name, Code: st.InstitutionalCode}
		for _, off := range offerings {
			row.Held += held[off.ID]
			for _, reg := range regs {
				if _, ok := sessionIDs[off.ID][reg.SessionID]; !ok {
					continue
				}
				if reg.State == attendance.StatePresent || reg.State == attendance.StateLate {
					row.Attended++
				}
			}
		}
		row.Percentage = percentage(row.Attended, row.Held)
		summary.Rows = append(summary.Rows, row)
	}

	sort.SliceStable(summary.Rows, func(i, j int) bool {
		if summary.Rows[i].Percentage != summary.Rows[j].Percentage {
			return summary.Rows[i].Percentage < summary.Rows[j].Percentage
		}
		return summary.Rows[i].Name < summary.Rows[j].Name
	})
	return summary, nil
}

// SessionRosterPDF renders the printable roster for a session.
func (svc *Service) SessionRosterPDF(ctx context.Context, sessionID string) ([]byte, error) {
	sess, err := svc.attendance.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	off, err := svc.academic.GetOffering(ctx, sess.OfferingID)
	if err != nil {
		return nil, err
	}
	roster, err := svc.attendance.SessionRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	doc := RosterDocument{
		CourseName: off.CourseName,
		Date:       sess.Date,
		StartTime:  sess.StartTime.String(),
		EndTime:    sess.EndTime.String(),
	}
	for _, entry := range roster {
		row := RosterRow{
			Name:  entry.Student.Name,
			Code:  entry.Student.InstitutionalCode,
			State: entry.State,
		}
		if entry.Registration != nil && !entry.Registration.RecordedAt.IsZero() {
			row.RecordedAt = entry.Registration.RecordedAt.In(svc.loc).Format("15:04")
		}
		doc.Rows = append(doc.Rows, row)
	}
	return svc.renderer.RenderRoster(doc)
}

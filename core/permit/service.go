package permit

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
)

var (
	// errors
	ErrNotFound          = errors.New("permit not found")
	ErrPermitDecided     = errors.New("permit has already been decided")
	ErrCrossTermSessions = errors.New("covered sessions must belong to the student's current term")
	ErrSelfDecision      = errors.New("cannot decide one's own permit")
	ErrUnknownSessions   = errors.New("unknown covered sessions")
)

type (
	// SessionCatalog resolves which term each class session belongs to.
	// Implemented by the attendance storage layer.
	SessionCatalog interface {
		SessionTermIDs(ctx context.Context, sessionIDs []string) (map[string]string, error)
	}

	Repository interface {
		CreatePermit(ctx context.Context, p Permit) (Permit, error)
		GetPermitByID(ctx context.Context, id string) (Permit, error)
		QueryPermitsByStudent(ctx context.Context, studentID string) ([]Permit, error)
		QueryAllPermits(ctx context.Context) ([]Permit, error)
		// SetPermitState updates state and approver only.
		SetPermitState(ctx context.Context, id string, state State, approverID string) error
		AddPermitSessions(ctx context.Context, id string, sessionIDs []string) error
	}

	Service struct {
		repo     Repository
		sessions SessionCatalog
		mailSvc  core.EmailService
		log      core.Logger
	}
)

func NewService(repo Repository, sessions SessionCatalog, mailSvc core.EmailService, log core.Logger) *Service {
	return &Service{repo: repo, sessions: sessions, mailSvc: mailSvc, log: log}
}

// checkSessionsTerm enforces the ledger boundary invariant: every covered
// session must belong to an offering in the student's current term.
func (svc *Service) checkSessionsTerm(ctx context.Context, student academic.Student, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	terms, err := svc.sessions.SessionTermIDs(ctx, sessionIDs)
	if err != nil {
		return err
	}
	for _, id := range sessionIDs {
		termID, ok := terms[id]
		if !ok {
			return core.NewValidationError(ErrUnknownSessions, core.FieldError{Field: "covered_session_ids", Error: ErrUnknownSessions.Error()})
		}
		if termID != student.TermID {
			return core.NewValidationError(ErrCrossTermSessions, core.FieldError{Field: "covered_session_ids", Error: ErrCrossTermSessions.Error()})
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, student academic.Student, np NewPermit) (Permit, error) {
	if err := svc.checkSessionsTerm(ctx, student, np.CoveredSessionIDs); err != nil {
		return Permit{}, err
	}
	p := Permit{
		ID:                uuid.NewString(),
		StudentID:         student.ID,
		Reason:            np.Reason,
		State:             StatePending,
		RequestedAt:       core.NowFunc().UTC(),
		StartDate:         np.start,
		EndDate:           np.end,
		CoveredSessionIDs: np.CoveredSessionIDs,
	}
	return svc.repo.CreatePermit(ctx, p)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Permit, error) {
	return svc.repo.GetPermitByID(ctx, id)
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID string) ([]Permit, error) {
	return svc.repo.QueryPermitsByStudent(ctx, studentID)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Permit, error) {
	return svc.repo.QueryAllPermits(ctx)
}

// AddCoveredSessions extends a pending permit's covered set; the set is
// frozen once the permit is decided.
func (svc *Service) AddCoveredSessions(ctx context.Context, id string, student academic.Student, sessionIDs []string) (Permit, error) {
	p, err := svc.repo.GetPermitByID(ctx, id)
	if err != nil {
		return Permit{}, err
	}
	if p.Decided() {
		return Permit{}, ErrPermitDecided
	}
	if err = svc.checkSessionsTerm(ctx, student, sessionIDs); err != nil {
		return Permit{}, err
	}
	if err = svc.repo.AddPermitSessions(ctx, id, sessionIDs); err != nil {
		return Permit{}, err
	}
	return svc.repo.GetPermitByID(ctx, id)
}

func (svc *Service) Approve(ctx context.Context, id string, approver academic.Admin, student academic.Student) (Permit, error) {
	return svc.decide(ctx, id, StateApproved, approver, student)
}

func (svc *Service) Reject(ctx context.Context, id string, approver academic.Admin, student academic.Student) (Permit, error) {
	return svc.decide(ctx, id, StateRejected, approver, student)
}

func (svc *Service) decide(ctx context.Context, id string, state State, approver academic.Admin, student academic.Student) (Permit, error) {
	p, err := svc.repo.GetPermitByID(ctx, id)
	if err != nil {
		return Permit{}, err
	}
	if p.Decided() {
		return Permit{}, ErrPermitDecided
	}
	if approver.UserID == student.UserID {
		return Permit{}, ErrSelfDecision
	}
	if err = svc.repo.SetPermitState(ctx, id, state, approver.ID); err != nil {
		return Permit{}, err
	}
	p.State = state
	p.ApproverID = approver.ID
	svc.sendDecisionMail(p, student)
	return p, nil
}

// sendDecisionMail notifies the student of the decision; best effort.
func (svc *Service) sendDecisionMail(p Permit, student academic.Student) {
	if student.Email == "" {
		return
	}
	verdict := "approved"
	if p.State == StateRejected {
		verdict = "rejected"
	}
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: student.Name, Address: student.Email}},
		Subject: fmt.Sprintf("Your absence permit has been %s", verdict),
		BodyStr: fmt.Sprintf(
			"Hello %s,\n\nYour absence permit requested on %s (%q) has been %s.\n",
			student.Name, p.RequestedAt.Format("2006-01-02"), p.Reason, verdict,
		),
	}
	svc.mailSvc.SendMessages(msg)
}

package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		GetSessionByOfferingAndDate(ctx context.Context, offeringID string, date time.Time) (Session, error)
		QuerySessionsByOffering(ctx context.Context, offeringID string) ([]Session, error)

		CreateRegistration(ctx context.Context, reg Registration) (Registration, error)
		GetRegistrationByID(ctx context.Context, id string) (Registration, error)
		QueryRegistrationsBySession(ctx context.Context, sessionID string) ([]Registration, error)
		QueryRegistrationsByStudent(ctx context.Context, studentID string) ([]Registration, error)
		QueryAllRegistrations(ctx context.Context) ([]Registration, error)
		SetRegistrationState(ctx context.Context, id string, state State) error
		SetRegistrationPermit(ctx context.Context, id string, permitID string) error
	}

	// RosterEntry is one row of a session roster. Registration is nil for
	// enrolled students with no record; their State is a synthesized ABSENT.
	RosterEntry struct {
		Student      academic.Student `json:"student"`
		State        State            `json:"state"`
		Registration *Registration    `json:"registration,omitempty"`
	}

	Service struct {
		repo     Repository
		academic *academic.Service
		cal      *calendar.Service
		permits  *permit.Service
		resolver *Resolver
		fence    Geofence
		push     core.PushService
		log      core.Logger

		preOpen time.Duration
		loc     *time.Location
	}
)

func NewService(
	repo Repository,
	academicSvc *academic.Service,
	calSvc *calendar.Service,
	permitSvc *permit.Service,
	push core.PushService,
	log core.Logger,
	cfg core.AttendanceConfig,
	loc *time.Location,
) *Service {
	return &Service{
		repo:     repo,
		academic: academicSvc,
		cal:      calSvc,
		permits:  permitSvc,
		resolver: NewResolver(loc, cfg.ToleranceMinutes, log),
		fence:    Geofence{Latitude: cfg.GeofenceLat, Longitude: cfg.GeofenceLng, RadiusM: cfg.GeofenceRadiusM},
		push:     push,
		log:      log,
		preOpen:  time.Duration(cfg.PreOpenMinutes) * time.Minute,
		loc:      loc,
	}
}

// nowLocal is the current wall-clock time at the institution.
func (svc *Service) nowLocal() time.Time { return core.NowFunc().In(svc.loc) }

// OpenSession starts today's session for an offering. The gate order is:
// teacher must be assigned, the day must not be blocked by the calendar, the
// weekday must match the schedule, and the local time must fall inside the
// opening window [start - preOpen, end). Reopening an already-open session
// is not an error; the existing session is returned unchanged.
func (svc *Service) OpenSession(ctx context.Context, teacher academic.Teacher, ns NewSession) (Session, error) {
	off, err := svc.academic.GetOffering(ctx, ns.OfferingID)
	if err != nil {
		return Session{}, err
	}
	assigned, err := svc.academic.IsTeacherAssigned(ctx, teacher.ID, off.ID)
	if err != nil {
		return Session{}, err
	}
	if !assigned {
		return Session{}, academic.ErrNotAuthorizedForOffering
	}

	local := svc.nowLocal()
	date := core.CivilDate(local)
	if err = svc.cal.CheckDate(ctx, date); err != nil {
		return Session{}, err
	}
	if local.Weekday() != off.Weekday {
		return Session{}, &WrongDayError{Scheduled: off.Weekday, Actual: local.Weekday()}
	}
	windowStart := off.StartTime - core.TimeOfDay(svc.preOpen/time.Minute)
	if tod := core.TimeOfDayOf(local); tod < windowStart || tod >= off.EndTime {
		return Session{}, &OutsideWindowError{Start: off.StartTime, End: off.EndTime}
	}

	sess, err := svc.repo.CreateSession(ctx, Session{
		ID:         uuid.NewString(),
		OfferingID: off.ID,
		Date:       date,
		StartTime:  off.StartTime,
		EndTime:    off.EndTime,
		Topic:      ns.Topic,
		CreatedAt:  core.NowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateSession {
			return svc.repo.GetSessionByOfferingAndDate(ctx, off.ID, date)
		}
		return Session{}, err
	}
	svc.notifySessionOpened(ctx, off, sess)
	return sess, nil
}

// notifySessionOpened pushes a "class has started" notification to every
// enrolled student with a registered device. Best effort.
func (svc *Service) notifySessionOpened(ctx context.Context, off academic.Offering, sess Session) {
	tokens, err := svc.academic.EnrolledPushTokens(ctx, off.ID)
	if err != nil {
		svc.log.Error("listing push tokens for session push", err)
		return
	}
	msg := &core.PushMessage{
		To:    tokens,
		Title: off.CourseName,
		Body:  fmt.Sprintf("Attendance is open until %s.", sess.EndTime),
		Data:  map[string]string{"session_id": sess.ID, "offering_id": off.ID},
	}
	if msg.HasRecipients() {
		svc.push.SendMessages(msg)
	}
}

// RegisterByQR records a student's attendance from a scanned badge. Both
// coordinates are mandatory and must fall inside the campus geofence; the
// badge payload must belong to the requesting student.
func (svc *Service) RegisterByQR(ctx context.Context, student academic.Student, offeringID, encoded string, lat, lng *float64) (Registration, error) {
	if lat == nil || lng == nil {
		return Registration{}, core.NewValidationError(ErrCoordinatesRequired,
			core.FieldError{Field: "latitude", Error: ErrCoordinatesRequired.Error()},
			core.FieldError{Field: "longitude", Error: ErrCoordinatesRequired.Error()},
		)
	}
	decision, err := svc.fence.Check(*lat, *lng)
	if err != nil {
		return Registration{}, core.NewValidationError(err, core.FieldError{Field: "latitude", Error: err.Error()})
	}
	if !decision.Allowed {
		return Registration{}, &GeofenceDeniedError{DistanceM: decision.DistanceM, RadiusM: svc.fence.RadiusM}
	}

	cred, err := DecodeCredential(encoded)
	if err != nil {
		return Registration{}, err
	}
	if cred.StudentID != student.ID || cred.InstitutionalCode != student.InstitutionalCode {
		svc.log.Warn(fmt.Sprintf("credential mismatch: student %s presented badge of %s (%s)", student.ID, cred.StudentID, cred.InstitutionalCode))
		return Registration{}, ErrCredentialMismatch
	}

	off, err := svc.academic.OfferingForStudent(ctx, offeringID, student)
	if err != nil {
		return Registration{}, err
	}

	local := svc.nowLocal()
	date := core.CivilDate(local)
	if err = svc.cal.CheckDate(ctx, date); err != nil {
		return Registration{}, err
	}
	sess, err := svc.activeSession(ctx, off, date, core.TimeOfDayOf(local))
	if err != nil {
		return Registration{}, err
	}

	reg := Registration{
		ID:         uuid.NewString(),
		StudentID:  student.ID,
		SessionID:  sess.ID,
		RecordedAt: core.NowFunc().UTC(),
		Latitude:   lat,
		Longitude:  lng,
	}
	reg.State = svc.resolver.Resolve(reg, sess, nil)
	return svc.repo.CreateRegistration(ctx, reg)
}

// activeSession finds the session accepting scans for an offering right now.
// Scans are accepted from the scheduled start through the scheduled end,
// inclusive; the pre-open margin only widens the opening window for teachers.
func (svc *Service) activeSession(ctx context.Context, off academic.Offering, date time.Time, tod core.TimeOfDay) (Session, error) {
	sess, err := svc.repo.GetSessionByOfferingAndDate(ctx, off.ID, date)
	if err != nil {
		if errors.Cause(err) == ErrSessionNotFound {
			return Session{}, ErrNoActiveSession
		}
		return Session{}, err
	}
	if tod < sess.StartTime || tod > sess.EndTime {
		return Session{}, ErrNoActiveSession
	}
	return sess, nil
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *Service) SessionsByOffering(ctx context.Context, offeringID string) ([]Session, error) {
	return svc.repo.QuerySessionsByOffering(ctx, offeringID)
}

// SessionRoster lists every enrolled student with their state for the
// session. Students with no record appear as ABSENT without one being
// persisted.
func (svc *Service) SessionRoster(ctx context.Context, sessionID string) ([]RosterEntry, error) {
	sess, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	students, err := svc.academic.EnrolledStudents(ctx, sess.OfferingID)
	if err != nil {
		return nil, err
	}
	regs, err := svc.repo.QueryRegistrationsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]Registration, len(regs))
	for _, reg := range regs {
		byStudent[reg.StudentID] = reg
	}

	roster := make([]RosterEntry, 0, len(students))
	for _, st := range students {
		entry := RosterEntry{Student: st, State: StateAbsent}
		if reg, ok := byStudent[st.ID]; ok {
			reg := reg
			entry.State = reg.State
			entry.Registration = &reg
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

func (svc *Service) StudentHistory(ctx context.Context, studentID string) ([]Registration, error) {
	return svc.repo.QueryRegistrationsByStudent(ctx, studentID)
}

// LinkPermit attaches one of the student's permits to their registration and
// re-resolves the state, so an approved permit covering the session flips the
// record to EXCUSED immediately.
func (svc *Service) LinkPermit(ctx context.Context, student academic.Student, registrationID, permitID string) (Registration, error) {
	reg, err := svc.repo.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return Registration{}, err
	}
	if reg.StudentID != student.ID {
		return Registration{}, ErrRegistrationNotFound
	}
	p, err := svc.permits.GetByID(ctx, permitID)
	if err != nil {
		return Registration{}, err
	}
	if p.StudentID != student.ID {
		return Registration{}, permit.ErrNotFound
	}
	if err = svc.repo.SetRegistrationPermit(ctx, registrationID, permitID); err != nil {
		return Registration{}, err
	}
	reg.PermitID = &permitID
	return svc.resolveAndStore(ctx, reg)
}

// ResolveRegistration recomputes a registration's state from its session
// schedule and linked permit, persisting the result.
func (svc *Service) ResolveRegistration(ctx context.Context, registrationID string) (Registration, error) {
	reg, err := svc.repo.GetRegistrationByID(ctx, registrationID)
	if err != nil {
		return Registration{}, err
	}
	return svc.resolveAndStore(ctx, reg)
}

func (svc *Service) resolveAndStore(ctx context.Context, reg Registration) (Registration, error) {
	sess, err := svc.repo.GetSessionByID(ctx, reg.SessionID)
	if err != nil {
		return Registration{}, err
	}
	var p *permit.Permit
	if reg.PermitID != nil {
		got, err := svc.permits.GetByID(ctx, *reg.PermitID)
		if err != nil {
			return Registration{}, err
		}
		p = &got
	}
	state := svc.resolver.Resolve(reg, sess, p)
	if state != reg.State {
		if err = svc.repo.SetRegistrationState(ctx, reg.ID, state); err != nil {
			return Registration{}, err
		}
		reg.State = state
	}
	return reg, nil
}

// FixStates re-resolves every registration and repairs the ones whose stored
// state no longer matches. Returns the number of records changed.
func (svc *Service) FixStates(ctx context.Context) (int, error) {
	regs, err := svc.repo.QueryAllRegistrations(ctx)
	if err != nil {
		return 0, err
	}
	sessions := make(map[string]Session)
	permits := make(map[string]*permit.Permit)
	fixed := 0
	for _, reg := range regs {
		sess, ok := sessions[reg.SessionID]
		if !ok {
			if sess, err = svc.repo.GetSessionByID(ctx, reg.SessionID); err != nil {
				svc.log.Error("loading session while fixing states", errors.Wrapf(err, "registration %s", reg.ID))
				continue
			}
			sessions[reg.SessionID] = sess
		}
		var p *permit.Permit
		if reg.PermitID != nil {
			if p, ok = permits[*reg.PermitID]; !ok {
				got, err := svc.permits.GetByID(ctx, *reg.PermitID)
				if err != nil {
					svc.log.Error("loading permit while fixing states", errors.Wrapf(err, "registration %s", reg.ID))
					continue
				}
				p = &got
				permits[*reg.PermitID] = p
			}
		}
		if state := svc.resolver.Resolve(reg, sess, p); state != reg.State {
			if err = svc.repo.SetRegistrationState(ctx, reg.ID, state); err != nil {
				return fixed, err
			}
			fixed++
		}
	}
	return fixed, nil
}

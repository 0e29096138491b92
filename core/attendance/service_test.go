package attendance_test

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	emailsvc "github.com/mkabenga/presencia/services/email"
	pushsvc "github.com/mkabenga/presencia/services/push"
	inmemdb "github.com/mkabenga/presencia/storage/database/inmem"
)

const (
	campusLat = -16.5
	campusLng = -68.15
)

var ctx = context.Background()

type fixture struct {
	svc         *attendance.Service
	repo        attendance.Repository
	academicSvc *academic.Service
	calSvc      *calendar.Service
	permitSvc   *permit.Service

	teacher  academic.Teacher
	student  academic.Student
	student2 academic.Student
	offering academic.Offering
	term     academic.Term
}

// newFixture builds an in-memory service graph with one offering scheduled
// Mondays 08:00-10:00 local, a teacher assigned to it and two students
// enrolled.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	conf := &core.Config{AppName: "Presencia", TestMode: true}
	logger := core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	loc, err := time.LoadLocation("America/La_Paz")
	require.NoError(t, err)

	db := inmemdb.NewDB()
	repo := inmemdb.NewAttendanceRepository(db)
	academicRepo := inmemdb.NewAcademicRepository(db)

	academicSvc := academic.NewService(academicRepo, logger)
	calSvc := calendar.NewService(inmemdb.NewCalendarRepository(db))
	permitSvc := permit.NewService(inmemdb.NewPermitRepository(db), repo, emailsvc.NewConsoleService(conf), logger)
	svc := attendance.NewService(repo, academicSvc, calSvc, permitSvc,
		pushsvc.NewConsoleService(conf), logger,
		core.AttendanceConfig{
			Timezone:         "America/La_Paz",
			ToleranceMinutes: 15,
			PreOpenMinutes:   15,
			GeofenceLat:      campusLat,
			GeofenceLng:      campusLng,
			GeofenceRadiusM:  150,
		}, loc)

	f := &fixture{svc: svc, repo: repo, academicSvc: academicSvc, calSvc: calSvc, permitSvc: permitSvc}

	prog, err := academicRepo.CreateProgram(ctx, academic.Program{ID: uuid.NewString(), Name: "Informatica"})
	require.NoError(t, err)
	f.term, err = academicRepo.CreateTerm(ctx, academic.Term{ID: uuid.NewString(), ProgramID: prog.ID, Name: "Semestre 1"})
	require.NoError(t, err)
	course, err := academicRepo.CreateCourse(ctx, academic.Course{ID: uuid.NewString(), Name: "Redes I"})
	require.NoError(t, err)
	f.offering, err = academicRepo.CreateOffering(ctx, academic.Offering{
		ID:               uuid.NewString(),
		CourseID:         course.ID,
		TermID:           f.term.ID,
		ManagementPeriod: "2025/1",
		Weekday:          time.Monday,
		StartTime:        core.NewTimeOfDay(8, 0),
		EndTime:          core.NewTimeOfDay(10, 0),
	})
	require.NoError(t, err)

	f.teacher, err = academicRepo.CreateTeacher(ctx, academic.Teacher{ID: uuid.NewString(), UserID: uuid.NewString()})
	require.NoError(t, err)
	_, err = academicRepo.CreateTeacherAssignment(ctx, academic.TeacherAssignment{
		ID: uuid.NewString(), TeacherID: f.teacher.ID, OfferingID: f.offering.ID,
	})
	require.NoError(t, err)

	f.student = f.createStudent(t, academicRepo, prog.ID, "INF-001")
	f.student2 = f.createStudent(t, academicRepo, prog.ID, "INF-002")
	return f
}

func (f *fixture) createStudent(t *testing.T, repo academic.Repository, programID, code string) academic.Student {
	t.Helper()
	st, err := repo.CreateStudent(ctx, academic.Student{
		ID:                uuid.NewString(),
		UserID:            uuid.NewString(),
		InstitutionalCode: code,
		ProgramID:         programID,
		TermID:            f.term.ID,
	})
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(ctx, academic.Enrollment{
		ID: uuid.NewString(), StudentID: st.ID, OfferingID: f.offering.ID, EnrolledAt: core.NowFunc().UTC(),
	})
	require.NoError(t, err)
	return st
}

// setNow freezes the clock at the given institution wall-clock time on
// Monday 2025-03-10 (La Paz is UTC-4).
func setNow(t *testing.T, day time.Weekday, hour, min int) {
	t.Helper()
	date := 10 + (int(day)-int(time.Monday)+7)%7
	core.NowFunc = func() time.Time {
		return time.Date(2025, 3, date, hour+4, min, 0, 0, time.UTC)
	}
	t.Cleanup(func() { core.NowFunc = time.Now })
}

func credentialFor(t *testing.T, st academic.Student) string {
	t.Helper()
	enc, err := attendance.EncodeCredential(attendance.Credential{
		StudentID:         st.ID,
		InstitutionalCode: st.InstitutionalCode,
		DisplayName:       st.Name,
	})
	require.NoError(t, err)
	return enc
}

func ptr(v float64) *float64 { return &v }

func TestService_OpenSession(t *testing.T) {
	t.Run("opens within window", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 7, 46)

		sess, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID, Topic: "Subnetting"})
		require.NoError(t, err)
		assert.Equal(t, f.offering.ID, sess.OfferingID)
		assert.Equal(t, "Subnetting", sess.Topic)
		assert.Equal(t, core.NewTimeOfDay(8, 0), sess.StartTime)
		assert.True(t, core.SameDate(sess.Date, core.NowFunc()))
	})

	t.Run("too early", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 7, 44)

		_, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		var windowErr *attendance.OutsideWindowError
		require.ErrorAs(t, err, &windowErr)
		// the message names the scheduled start, not the pre-open bound
		assert.Equal(t, core.NewTimeOfDay(8, 0), windowErr.Start)
		assert.Contains(t, windowErr.Error(), "08:00")
	})

	t.Run("after end", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 10, 0)

		_, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		var windowErr *attendance.OutsideWindowError
		assert.ErrorAs(t, err, &windowErr)
	})

	t.Run("wrong weekday", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Tuesday, 8, 0)

		_, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		var dayErr *attendance.WrongDayError
		require.ErrorAs(t, err, &dayErr)
		assert.Equal(t, time.Monday, dayErr.Scheduled)
		assert.Equal(t, time.Tuesday, dayErr.Actual)
	})

	t.Run("blocked by special day", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)

		nd := calendar.NewSpecialDay{Date: "2025-03-10", Kind: calendar.KindHoliday, Description: "Feriado"}
		require.NoError(t, nd.Validate(core.Validate))
		_, err := f.calSvc.Create(ctx, nd, uuid.NewString())
		require.NoError(t, err)

		_, err = f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		var blockedErr *calendar.BlockedError
		assert.ErrorAs(t, err, &blockedErr)
	})

	t.Run("not assigned", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)

		stranger := academic.Teacher{ID: uuid.NewString()}
		_, err := f.svc.OpenSession(ctx, stranger, attendance.NewSession{OfferingID: f.offering.ID})
		assert.ErrorIs(t, err, academic.ErrNotAuthorizedForOffering)
	})

	t.Run("reopen returns existing session", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)

		first, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		require.NoError(t, err)
		again, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	})
}

func TestService_RegisterByQR(t *testing.T) {
	openSession := func(t *testing.T, f *fixture) attendance.Session {
		t.Helper()
		sess, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
		require.NoError(t, err)
		return sess
	}

	t.Run("on time is PRESENT", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		sess := openSession(t, f)
		setNow(t, time.Monday, 8, 10)

		reg, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		require.NoError(t, err)
		assert.Equal(t, attendance.StatePresent, reg.State)
		assert.Equal(t, sess.ID, reg.SessionID)
		assert.Equal(t, core.NowFunc().UTC(), reg.RecordedAt)
	})

	t.Run("past tolerance is LATE", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)
		setNow(t, time.Monday, 8, 16)

		reg, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		require.NoError(t, err)
		assert.Equal(t, attendance.StateLate, reg.State)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), nil, ptr(campusLng))
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})

	t.Run("outside geofence", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat+0.01), ptr(campusLng))
		var fenceErr *attendance.GeofenceDeniedError
		require.ErrorAs(t, err, &fenceErr)
		assert.Greater(t, fenceErr.DistanceM, fenceErr.RadiusM)
	})

	t.Run("someone else's badge", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student2), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrCredentialMismatch)
	})

	t.Run("garbage credential", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, "???", ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrInvalidCredential)
	})

	t.Run("no session open", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 10)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrNoActiveSession)
	})

	t.Run("session not started yet", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 7, 50)
		openSession(t, f)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrNoActiveSession)
	})

	t.Run("scan at scheduled end still counts", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)
		setNow(t, time.Monday, 10, 0)

		reg, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		require.NoError(t, err)
		assert.Equal(t, attendance.StateLate, reg.State)
	})

	t.Run("session closed for scans", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)
		setNow(t, time.Monday, 10, 1)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrNoActiveSession)
	})

	t.Run("double scan", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)
		setNow(t, time.Monday, 8, 10)

		_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		require.NoError(t, err)
		_, err = f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, attendance.ErrDuplicateRegistration)
	})

	t.Run("simultaneous scans record once", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)
		setNow(t, time.Monday, 8, 10)

		const scans = 16
		cred := credentialFor(t, f.student)
		errs := make(chan error, scans)
		var wg sync.WaitGroup
		for i := 0; i < scans; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, cred, ptr(campusLat), ptr(campusLng))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, attendance.ErrDuplicateRegistration):
				dup++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, scans-1, dup)
	})

	t.Run("offering from another term", func(t *testing.T) {
		f := newFixture(t)
		setNow(t, time.Monday, 8, 0)
		openSession(t, f)

		outsider := f.student
		outsider.TermID = uuid.NewString()
		_, err := f.svc.RegisterByQR(ctx, outsider, f.offering.ID, credentialFor(t, outsider), ptr(campusLat), ptr(campusLng))
		assert.ErrorIs(t, err, academic.ErrNotAuthorizedForOffering)
	})
}

func TestService_SessionRoster(t *testing.T) {
	f := newFixture(t)
	setNow(t, time.Monday, 8, 0)
	sess, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
	require.NoError(t, err)

	_, err = f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
	require.NoError(t, err)

	roster, err := f.svc.SessionRoster(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	states := map[string]attendance.State{}
	for _, entry := range roster {
		states[entry.Student.ID] = entry.State
	}
	assert.Equal(t, attendance.StatePresent, states[f.student.ID])
	assert.Equal(t, attendance.StateAbsent, states[f.student2.ID])

	// the synthesized absence is not persisted
	regs, err := f.repo.QueryRegistrationsBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestService_LinkPermit(t *testing.T) {
	f := newFixture(t)
	setNow(t, time.Monday, 8, 0)
	sess, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
	require.NoError(t, err)

	setNow(t, time.Monday, 8, 30)
	reg, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
	require.NoError(t, err)
	require.Equal(t, attendance.StateLate, reg.State)

	np := permit.NewPermit{
		Reason:            "medical appointment",
		StartDate:         "2025-03-10",
		EndDate:           "2025-03-10",
		CoveredSessionIDs: []string{sess.ID},
	}
	require.NoError(t, np.Validate(core.Validate))
	p, err := f.permitSvc.Create(ctx, f.student, np)
	require.NoError(t, err)

	t.Run("pending permit does not excuse", func(t *testing.T) {
		got, err := f.svc.LinkPermit(ctx, f.student, reg.ID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StateLate, got.State)
	})

	t.Run("approval excuses on re-resolve", func(t *testing.T) {
		admin := academic.Admin{ID: uuid.NewString()}
		_, err := f.permitSvc.Approve(ctx, p.ID, admin, f.student)
		require.NoError(t, err)

		got, err := f.svc.ResolveRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StateExcused, got.State)
	})

	t.Run("cannot link someone else's permit", func(t *testing.T) {
		_, err := f.svc.LinkPermit(ctx, f.student2, reg.ID, p.ID)
		assert.ErrorIs(t, err, attendance.ErrRegistrationNotFound)
	})
}

func TestService_FixStates(t *testing.T) {
	f := newFixture(t)
	setNow(t, time.Monday, 8, 0)
	sess, err := f.svc.OpenSession(ctx, f.teacher, attendance.NewSession{OfferingID: f.offering.ID})
	require.NoError(t, err)

	reg, err := f.svc.RegisterByQR(ctx, f.student, f.offering.ID, credentialFor(t, f.student), ptr(campusLat), ptr(campusLng))
	require.NoError(t, err)
	require.Equal(t, attendance.StatePresent, reg.State)

	// corrupt the stored state
	require.NoError(t, f.repo.SetRegistrationState(ctx, reg.ID, attendance.StateLate))

	fixed, err := f.svc.FixStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	got, err := f.repo.GetRegistrationByID(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatePresent, got.State)
	assert.Equal(t, sess.ID, got.SessionID)

	// a second pass finds nothing to repair
	fixed, err = f.svc.FixStates(ctx)
	require.NoError(t, err)
	assert.Zero(t, fixed)
}

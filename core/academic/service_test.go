package academic_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/user"
	inmemdb "github.com/mkabenga/presencia/storage/database/inmem"
)

var ctx = context.Background()

type fixture struct {
	svc     *academic.Service
	usrSvc  *user.Service
	program academic.Program
	term    academic.Term
	course  academic.Course
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	db := inmemdb.NewDB()
	svc := academic.NewService(inmemdb.NewAcademicRepository(db), logger)

	f := &fixture{svc: svc, usrSvc: user.NewService(inmemdb.NewUserRepository(db), logger)}
	var err error
	f.program, err = svc.CreateProgram(ctx, academic.NewProgram{Name: "Informatica"})
	require.NoError(t, err)
	f.term, err = svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 1", ProgramID: f.program.ID})
	require.NoError(t, err)
	f.course, err = svc.CreateCourse(ctx, academic.NewCourse{Name: "Redes I"})
	require.NoError(t, err)
	return f
}

func (f *fixture) newOffering(t *testing.T, period, start, end string) academic.Offering {
	t.Helper()
	no := academic.NewOffering{
		CourseID:         f.course.ID,
		TermID:           f.term.ID,
		ManagementPeriod: period,
		Weekday:          "monday",
		StartTime:        start,
		EndTime:          end,
	}
	require.NoError(t, no.Validate(core.Validate))
	off, err := f.svc.CreateOffering(ctx, no)
	require.NoError(t, err)
	return off
}

func (f *fixture) newTeacher(t *testing.T) academic.Teacher {
	t.Helper()
	usr := f.newUser(t)
	teacher, err := f.svc.CreateTeacher(ctx, academic.NewTeacher{UserID: usr.ID, Speciality: "Networks"})
	require.NoError(t, err)
	return teacher
}

func (f *fixture) newStudent(t *testing.T, code string) academic.Student {
	t.Helper()
	usr := f.newUser(t)
	st, err := f.svc.CreateStudent(ctx, academic.NewStudent{
		UserID:            usr.ID,
		InstitutionalCode: code,
		ProgramID:         f.program.ID,
		TermID:            f.term.ID,
	})
	require.NoError(t, err)
	return st
}

func (f *fixture) newUser(t *testing.T) user.User {
	t.Helper()
	usr, err := f.usrSvc.Create(ctx, user.NewUser{Name: "Someone", Password: "LeP@ss10", PasswordConfirm: "LeP@ss10"})
	require.NoError(t, err)
	return usr
}

func TestService_Catalog(t *testing.T) {
	f := newFixture(t)

	t.Run("duplicate program name", func(t *testing.T) {
		_, err := f.svc.CreateProgram(ctx, academic.NewProgram{Name: "Informatica"})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.ErrorIs(t, err, academic.ErrProgramExists)
	})

	t.Run("duplicate term per program", func(t *testing.T) {
		_, err := f.svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 1", ProgramID: f.program.ID})
		assert.ErrorIs(t, err, academic.ErrTermExists)
	})

	t.Run("same term name in another program is fine", func(t *testing.T) {
		other, err := f.svc.CreateProgram(ctx, academic.NewProgram{Name: "Derecho"})
		require.NoError(t, err)
		_, err = f.svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 1", ProgramID: other.ID})
		assert.NoError(t, err)
	})

	t.Run("term requires existing program", func(t *testing.T) {
		_, err := f.svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 2", ProgramID: "nope"})
		assert.ErrorIs(t, err, academic.ErrProgramNotFound)
	})
}

func TestService_Offerings(t *testing.T) {
	f := newFixture(t)
	off := f.newOffering(t, "2025/1", "08:00", "10:00")

	t.Run("duplicate offering", func(t *testing.T) {
		no := academic.NewOffering{
			CourseID:         f.course.ID,
			TermID:           f.term.ID,
			ManagementPeriod: "2025/1",
			Weekday:          "monday",
			StartTime:        "08:00",
			EndTime:          "10:00",
		}
		require.NoError(t, no.Validate(core.Validate))
		_, err := f.svc.CreateOffering(ctx, no)
		assert.ErrorIs(t, err, academic.ErrOfferingExists)
	})

	t.Run("second time slot is a distinct offering", func(t *testing.T) {
		other := f.newOffering(t, "2025/1", "14:00", "16:00")
		assert.NotEqual(t, off.ID, other.ID)
	})

	t.Run("end must be after start", func(t *testing.T) {
		no := academic.NewOffering{
			CourseID:         f.course.ID,
			TermID:           f.term.ID,
			ManagementPeriod: "2025/1",
			Weekday:          "monday",
			StartTime:        "10:00",
			EndTime:          "08:00",
		}
		err := no.Validate(core.Validate)
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestService_Profiles(t *testing.T) {
	f := newFixture(t)

	t.Run("duplicate institutional code", func(t *testing.T) {
		f.newStudent(t, "INF-001")
		usr := f.newUser(t)
		_, err := f.svc.CreateStudent(ctx, academic.NewStudent{
			UserID:            usr.ID,
			InstitutionalCode: "INF-001",
			ProgramID:         f.program.ID,
			TermID:            f.term.ID,
		})
		assert.ErrorIs(t, err, academic.ErrCodeExists)
	})

	t.Run("one profile per user", func(t *testing.T) {
		st := f.newStudent(t, "INF-002")
		_, err := f.svc.CreateStudent(ctx, academic.NewStudent{
			UserID:            st.UserID,
			InstitutionalCode: "INF-003",
			ProgramID:         f.program.ID,
			TermID:            f.term.ID,
		})
		assert.ErrorIs(t, err, academic.ErrProfileExists)
	})

	t.Run("term must belong to program", func(t *testing.T) {
		other, err := f.svc.CreateProgram(ctx, academic.NewProgram{Name: "Medicina"})
		require.NoError(t, err)
		otherTerm, err := f.svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 1", ProgramID: other.ID})
		require.NoError(t, err)

		usr := f.newUser(t)
		_, err = f.svc.CreateStudent(ctx, academic.NewStudent{
			UserID:            usr.ID,
			InstitutionalCode: "INF-004",
			ProgramID:         f.program.ID,
			TermID:            otherTerm.ID,
		})
		var vErr *core.ValidationError
		assert.ErrorAs(t, err, &vErr)
	})
}

func TestService_Assignments(t *testing.T) {
	f := newFixture(t)
	off := f.newOffering(t, "2025/1", "08:00", "10:00")
	teacher := f.newTeacher(t)

	_, err := f.svc.AssignTeacher(ctx, teacher.ID, off.ID)
	require.NoError(t, err)

	t.Run("assigned", func(t *testing.T) {
		assigned, err := f.svc.IsTeacherAssigned(ctx, teacher.ID, off.ID)
		require.NoError(t, err)
		assert.True(t, assigned)

		offs, err := f.svc.TeacherOfferings(ctx, teacher.ID)
		require.NoError(t, err)
		require.Len(t, offs, 1)
		assert.Equal(t, off.ID, offs[0].ID)
	})

	t.Run("duplicate assignment", func(t *testing.T) {
		_, err := f.svc.AssignTeacher(ctx, teacher.ID, off.ID)
		assert.ErrorIs(t, err, academic.ErrAlreadyAssigned)
	})

	t.Run("unassigning the last teacher deletes the offering", func(t *testing.T) {
		require.NoError(t, f.svc.UnassignTeacher(ctx, teacher.ID, off.ID))

		_, err := f.svc.GetOffering(ctx, off.ID)
		assert.ErrorIs(t, err, academic.ErrOfferingNotFound)
	})

	t.Run("offering survives while co-teachers remain", func(t *testing.T) {
		off := f.newOffering(t, "2025/1", "14:00", "16:00")
		second := f.newTeacher(t)
		_, err := f.svc.AssignTeacher(ctx, teacher.ID, off.ID)
		require.NoError(t, err)
		_, err = f.svc.AssignTeacher(ctx, second.ID, off.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.UnassignTeacher(ctx, teacher.ID, off.ID))
		_, err = f.svc.GetOffering(ctx, off.ID)
		assert.NoError(t, err)
	})
}

func TestService_Enrollment(t *testing.T) {
	f := newFixture(t)
	off := f.newOffering(t, "2025/1", "08:00", "10:00")
	st := f.newStudent(t, "INF-001")

	_, err := f.svc.Enroll(ctx, st.ID, off.ID)
	require.NoError(t, err)

	t.Run("duplicate enrollment", func(t *testing.T) {
		_, err := f.svc.Enroll(ctx, st.ID, off.ID)
		assert.ErrorIs(t, err, academic.ErrAlreadyEnrolled)
	})

	t.Run("cross-term offering rejected", func(t *testing.T) {
		term2, err := f.svc.CreateTerm(ctx, academic.NewTerm{Name: "Semestre 2", ProgramID: f.program.ID})
		require.NoError(t, err)
		no := academic.NewOffering{
			CourseID:         f.course.ID,
			TermID:           term2.ID,
			ManagementPeriod: "2025/2",
			Weekday:          "monday",
			StartTime:        "08:00",
			EndTime:          "10:00",
		}
		require.NoError(t, no.Validate(core.Validate))
		crossOff, err := f.svc.CreateOffering(ctx, no)
		require.NoError(t, err)

		_, err = f.svc.Enroll(ctx, st.ID, crossOff.ID)
		assert.ErrorIs(t, err, academic.ErrNotAuthorizedForOffering)
	})

	t.Run("roster", func(t *testing.T) {
		students, err := f.svc.EnrolledStudents(ctx, off.ID)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, st.ID, students[0].ID)
	})

	t.Run("push tokens skip deviceless students", func(t *testing.T) {
		tokens, err := f.svc.EnrolledPushTokens(ctx, off.ID)
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("student offerings match current term", func(t *testing.T) {
		offs, err := f.svc.StudentOfferings(ctx, st)
		require.NoError(t, err)
		require.Len(t, offs, 1)
		assert.Equal(t, off.ID, offs[0].ID)
	})
}

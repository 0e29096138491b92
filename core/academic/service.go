package academic

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
)

var (
	// errors
	ErrProgramNotFound    = errors.New("program not found")
	ErrTermNotFound       = errors.New("term not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrOfferingNotFound   = errors.New("offering not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrTeacherNotFound    = errors.New("teacher not found")
	ErrAdminNotFound      = errors.New("administrator not found")
	ErrAssignmentNotFound = errors.New("teacher assignment not found")

	ErrProgramExists    = errors.New("a program with this name already exists")
	ErrTermExists       = errors.New("this term already exists for the program")
	ErrCourseExists     = errors.New("a course with this name already exists")
	ErrOfferingExists   = errors.New("this offering already exists")
	ErrCodeExists       = errors.New("a student with this institutional code already exists")
	ErrProfileExists    = errors.New("this user already has a profile")
	ErrAlreadyAssigned  = errors.New("teacher is already assigned to this offering")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled in this offering")
	ErrNotAuthorizedForOffering = errors.New("offering does not belong to the student's program and term")
)

type (
	Repository interface {
		CreateProgram(ctx context.Context, p Program) (Program, error)
		QueryAllPrograms(ctx context.Context) ([]Program, error)
		GetProgramByID(ctx context.Context, id string) (Program, error)

		CreateTerm(ctx context.Context, t Term) (Term, error)
		QueryTermsByProgram(ctx context.Context, programID string) ([]Term, error)
		GetTermByID(ctx context.Context, id string) (Term, error)

		CreateCourse(ctx context.Context, c Course) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)

		CreateOffering(ctx context.Context, o Offering) (Offering, error)
		GetOfferingByID(ctx context.Context, id string) (Offering, error)
		QueryOfferingsByTerm(ctx context.Context, termID string) ([]Offering, error)
		QueryOfferingsByCourseAndTerm(ctx context.Context, courseID, termID string) ([]Offering, error)
		DeleteOffering(ctx context.Context, id string) error

		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		QueryStudentsByTerm(ctx context.Context, termID string) ([]Student, error)

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacherByID(ctx context.Context, id string) (Teacher, error)
		GetTeacherByUserID(ctx context.Context, userID string) (Teacher, error)

		CreateAdmin(ctx context.Context, a Admin) (Admin, error)
		GetAdminByUserID(ctx context.Context, userID string) (Admin, error)

		CreateTeacherAssignment(ctx context.Context, ta TeacherAssignment) (TeacherAssignment, error)
		GetTeacherAssignment(ctx context.Context, teacherID, offeringID string) (TeacherAssignment, error)
		CountOfferingAssignments(ctx context.Context, offeringID string) (int, error)
		DeleteTeacherAssignment(ctx context.Context, id string) error
		QueryOfferingsByTeacher(ctx context.Context, teacherID string) ([]Offering, error)

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		QueryEnrolledStudents(ctx context.Context, offeringID string) ([]Student, error)
		QueryEnrolledPushTokens(ctx context.Context, offeringID string) ([]string, error)
	}

	Service struct {
		repo Repository
		log  core.Logger
	}
)

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Catalog

func (svc *Service) CreateProgram(ctx context.Context, np NewProgram) (Program, error) {
	p := Program{ID: uuid.NewString(), Name: np.Name}
	p, err := svc.repo.CreateProgram(ctx, p)
	if errors.Cause(err) == ErrProgramExists {
		return Program{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return p, err
}

func (svc *Service) QueryPrograms(ctx context.Context) ([]Program, error) {
	return svc.repo.QueryAllPrograms(ctx)
}

func (svc *Service) GetProgram(ctx context.Context, id string) (Program, error) {
	return svc.repo.GetProgramByID(ctx, id)
}

func (svc *Service) CreateTerm(ctx context.Context, nt NewTerm) (Term, error) {
	if _, err := svc.repo.GetProgramByID(ctx, nt.ProgramID); err != nil {
		return Term{}, err
	}
	t := Term{ID: uuid.NewString(), Name: nt.Name, ProgramID: nt.ProgramID}
	t, err := svc.repo.CreateTerm(ctx, t)
	if errors.Cause(err) == ErrTermExists {
		return Term{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return t, err
}

func (svc *Service) QueryTerms(ctx context.Context, programID string) ([]Term, error) {
	return svc.repo.QueryTermsByProgram(ctx, programID)
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	c := Course{ID: uuid.NewString(), Name: nc.Name, Description: nc.Description}
	c, err := svc.repo.CreateCourse(ctx, c)
	if errors.Cause(err) == ErrCourseExists {
		return Course{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
	}
	return c, err
}

func (svc *Service) QueryCourses(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *Service) CreateOffering(ctx context.Context, no NewOffering) (Offering, error) {
	if _, err := svc.repo.GetCourseByID(ctx, no.CourseID); err != nil {
		return Offering{}, err
	}
	if _, err := svc.repo.GetTermByID(ctx, no.TermID); err != nil {
		return Offering{}, err
	}
	o := Offering{
		ID:               uuid.NewString(),
		CourseID:         no.CourseID,
		TermID:           no.TermID,
		ManagementPeriod: no.ManagementPeriod,
		Weekday:          no.weekday,
		StartTime:        no.start,
		EndTime:          no.end,
	}
	o, err := svc.repo.CreateOffering(ctx, o)
	if errors.Cause(err) == ErrOfferingExists {
		return Offering{}, core.NewValidationError(err)
	}
	return o, err
}

func (svc *Service) GetOffering(ctx context.Context, id string) (Offering, error) {
	return svc.repo.GetOfferingByID(ctx, id)
}

func (svc *Service) QueryOfferingsByTerm(ctx context.Context, termID string) ([]Offering, error) {
	return svc.repo.QueryOfferingsByTerm(ctx, termID)
}

// Profiles

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetProgramByID(ctx, ns.ProgramID); err != nil {
		return Student{}, err
	}
	term, err := svc.repo.GetTermByID(ctx, ns.TermID)
	if err != nil {
		return Student{}, err
	}
	if term.ProgramID != ns.ProgramID {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "term_id", Error: "term does not belong to the program"})
	}
	s := Student{
		ID:                uuid.NewString(),
		UserID:            ns.UserID,
		InstitutionalCode: ns.InstitutionalCode,
		ProgramID:         ns.ProgramID,
		TermID:            ns.TermID,
	}
	s, err = svc.repo.CreateStudent(ctx, s)
	switch errors.Cause(err) {
	case ErrCodeExists:
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "institutional_code", Error: err.Error()})
	case ErrProfileExists:
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
	}
	return s, err
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) StudentsByTerm(ctx context.Context, termID string) ([]Student, error) {
	return svc.repo.QueryStudentsByTerm(ctx, termID)
}

func (svc *Service) GetStudentByUser(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	t := Teacher{ID: uuid.NewString(), UserID: nt.UserID, Speciality: nt.Speciality}
	t, err := svc.repo.CreateTeacher(ctx, t)
	if errors.Cause(err) == ErrProfileExists {
		return Teacher{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
	}
	return t, err
}

func (svc *Service) GetTeacherByUser(ctx context.Context, userID string) (Teacher, error) {
	return svc.repo.GetTeacherByUserID(ctx, userID)
}

func (svc *Service) CreateAdmin(ctx context.Context, na NewAdmin) (Admin, error) {
	a := Admin{ID: uuid.NewString(), UserID: na.UserID, Position: na.Position}
	a, err := svc.repo.CreateAdmin(ctx, a)
	if errors.Cause(err) == ErrProfileExists {
		return Admin{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
	}
	return a, err
}

func (svc *Service) GetAdminByUser(ctx context.Context, userID string) (Admin, error) {
	return svc.repo.GetAdminByUserID(ctx, userID)
}

// Assignments & Enrollment

func (svc *Service) AssignTeacher(ctx context.Context, teacherID, offeringID string) (TeacherAssignment, error) {
	if _, err := svc.repo.GetTeacherByID(ctx, teacherID); err != nil {
		return TeacherAssignment{}, err
	}
	if _, err := svc.repo.GetOfferingByID(ctx, offeringID); err != nil {
		return TeacherAssignment{}, err
	}
	ta := TeacherAssignment{ID: uuid.NewString(), TeacherID: teacherID, OfferingID: offeringID}
	ta, err := svc.repo.CreateTeacherAssignment(ctx, ta)
	if errors.Cause(err) == ErrAlreadyAssigned {
		return TeacherAssignment{}, core.NewValidationError(err)
	}
	return ta, err
}

// UnassignTeacher removes a teacher's assignment; when it was the offering's
// last one, the offering itself is deleted. The delete is an explicit part of
// this command so callers can see the cascade at the call site.
func (svc *Service) UnassignTeacher(ctx context.Context, teacherID, offeringID string) error {
	ta, err := svc.repo.GetTeacherAssignment(ctx, teacherID, offeringID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteTeacherAssignment(ctx, ta.ID); err != nil {
		return err
	}
	remaining, err := svc.repo.CountOfferingAssignments(ctx, offeringID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		svc.log.Info("deleting offering left without teachers", map[string]interface{}{"offering_id": offeringID})
		return svc.repo.DeleteOffering(ctx, offeringID)
	}
	return nil
}

func (svc *Service) IsTeacherAssigned(ctx context.Context, teacherID, offeringID string) (bool, error) {
	_, err := svc.repo.GetTeacherAssignment(ctx, teacherID, offeringID)
	if err == nil {
		return true, nil
	}
	if errors.Cause(err) == ErrAssignmentNotFound {
		return false, nil
	}
	return false, err
}

func (svc *Service) TeacherOfferings(ctx context.Context, teacherID string) ([]Offering, error) {
	return svc.repo.QueryOfferingsByTeacher(ctx, teacherID)
}

func (svc *Service) Enroll(ctx context.Context, studentID, offeringID string) (Enrollment, error) {
	student, err := svc.repo.GetStudentByID(ctx, studentID)
	if err != nil {
		return Enrollment{}, err
	}
	if _, err = svc.OfferingForStudent(ctx, offeringID, student); err != nil {
		return Enrollment{}, err
	}
	e := Enrollment{ID: uuid.NewString(), StudentID: studentID, OfferingID: offeringID, EnrolledAt: core.NowFunc().UTC()}
	e, err = svc.repo.CreateEnrollment(ctx, e)
	if errors.Cause(err) == ErrAlreadyEnrolled {
		return Enrollment{}, core.NewValidationError(err)
	}
	return e, err
}

func (svc *Service) EnrolledStudents(ctx context.Context, offeringID string) ([]Student, error) {
	return svc.repo.QueryEnrolledStudents(ctx, offeringID)
}

// EnrolledPushTokens lists the device push tokens of an offering's enrolled
// students, skipping students without a registered device.
func (svc *Service) EnrolledPushTokens(ctx context.Context, offeringID string) ([]string, error) {
	return svc.repo.QueryEnrolledPushTokens(ctx, offeringID)
}

// StudentOfferings returns the offerings a student is expected to attend,
// matched by the student's current (program, term) pair.
func (svc *Service) StudentOfferings(ctx context.Context, student Student) ([]Offering, error) {
	return svc.repo.QueryOfferingsByTerm(ctx, student.TermID)
}

// OfferingForStudent resolves an offering iff it belongs to the student's
// current term; otherwise ErrNotAuthorizedForOffering.
func (svc *Service) OfferingForStudent(ctx context.Context, offeringID string, student Student) (Offering, error) {
	off, err := svc.repo.GetOfferingByID(ctx, offeringID)
	if err != nil {
		return Offering{}, err
	}
	if off.TermID != student.TermID {
		return Offering{}, ErrNotAuthorizedForOffering
	}
	return off, nil
}

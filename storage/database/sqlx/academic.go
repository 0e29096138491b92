package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/academic"
)

type offeringRow struct {
	ID               string         `db:"id"`
	CourseID         string         `db:"course_id"`
	TermID           string         `db:"term_id"`
	ManagementPeriod string         `db:"management_period"`
	Weekday          int            `db:"weekday"`
	StartTime        core.TimeOfDay `db:"start_time"`
	EndTime          core.TimeOfDay `db:"end_time"`
	CourseName       string         `db:"course_name"`
}

func (r offeringRow) offering() academic.Offering {
	return academic.Offering{
		ID:               r.ID,
		CourseID:         r.CourseID,
		TermID:           r.TermID,
		ManagementPeriod: r.ManagementPeriod,
		Weekday:          time.Weekday(r.Weekday),
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		CourseName:       r.CourseName,
	}
}

const offeringCols = `o.id, o.course_id, o.term_id, o.management_period, o.weekday, o.start_time, o.end_time, c.name AS course_name
	 FROM offerings o JOIN courses c ON c.id = o.course_id`

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{db: db}
}

// Catalog

func (repo *academicRepository) CreateProgram(ctx context.Context, p academic.Program) (academic.Program, error) {
	_, err := repo.db.ExecContext(ctx, "INSERT INTO programs (id, name) VALUES ($1, $2)", p.ID, p.Name)
	if err != nil {
		return academic.Program{}, uniqueErr(err, map[string]error{"programs_name_key": academic.ErrProgramExists}, "creating program")
	}
	return p, nil
}

func (repo *academicRepository) QueryAllPrograms(ctx context.Context) ([]academic.Program, error) {
	var progs []academic.Program
	err := repo.db.SelectContext(ctx, &progs, "SELECT id, name FROM programs ORDER BY name")
	return progs, errors.Wrap(err, "querying programs")
}

func (repo *academicRepository) GetProgramByID(ctx context.Context, id string) (academic.Program, error) {
	var p academic.Program
	if err := repo.db.GetContext(ctx, &p, "SELECT id, name FROM programs WHERE id = $1", id); err != nil {
		return academic.Program{}, notFoundErr(err, academic.ErrProgramNotFound, "getting program")
	}
	return p, nil
}

func (repo *academicRepository) CreateTerm(ctx context.Context, t academic.Term) (academic.Term, error) {
	_, err := repo.db.ExecContext(ctx, "INSERT INTO terms (id, program_id, name) VALUES ($1, $2, $3)", t.ID, t.ProgramID, t.Name)
	if err != nil {
		return academic.Term{}, uniqueErr(err, map[string]error{"terms_program_id_name_key": academic.ErrTermExists}, "creating term")
	}
	return t, nil
}

func (repo *academicRepository) QueryTermsByProgram(ctx context.Context, programID string) ([]academic.Term, error) {
	var terms []academic.Term
	err := repo.db.SelectContext(ctx, &terms,
		"SELECT id, program_id, name FROM terms WHERE program_id = $1 ORDER BY name", programID)
	return terms, errors.Wrap(err, "querying terms")
}

func (repo *academicRepository) GetTermByID(ctx context.Context, id string) (academic.Term, error) {
	var t academic.Term
	if err := repo.db.GetContext(ctx, &t, "SELECT id, program_id, name FROM terms WHERE id = $1", id); err != nil {
		return academic.Term{}, notFoundErr(err, academic.ErrTermNotFound, "getting term")
	}
	return t, nil
}

func (repo *academicRepository) CreateCourse(ctx context.Context, c academic.Course) (academic.Course, error) {
	_, err := repo.db.ExecContext(ctx, "INSERT INTO courses (id, name, description) VALUES ($1, $2, $3)", c.ID, c.Name, c.Description)
	if err != nil {
		return academic.Course{}, uniqueErr(err, map[string]error{"courses_name_key": academic.ErrCourseExists}, "creating course")
	}
	return c, nil
}

func (repo *academicRepository) QueryAllCourses(ctx context.Context) ([]academic.Course, error) {
	var courses []academic.Course
	err := repo.db.SelectContext(ctx, &courses, "SELECT id, name, description FROM courses ORDER BY name")
	return courses, errors.Wrap(err, "querying courses")
}

func (repo *academicRepository) GetCourseByID(ctx context.Context, id string) (academic.Course, error) {
	var c academic.Course
	if err := repo.db.GetContext(ctx, &c, "SELECT id, name, description FROM courses WHERE id = $1", id); err != nil {
		return academic.Course{}, notFoundErr(err, academic.ErrCourseNotFound, "getting course")
	}
	return c, nil
}

func (repo *academicRepository) CreateOffering(ctx context.Context, o academic.Offering) (academic.Offering, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO offerings (id, course_id, term_id, management_period, weekday, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.CourseID, o.TermID, o.ManagementPeriod, int(o.Weekday), o.StartTime, o.EndTime,
	)
	if err != nil {
		return academic.Offering{}, uniqueErr(err, map[string]error{
			"offerings_course_id_term_id_management_period_start_time_en_key": academic.ErrOfferingExists,
		}, "creating offering")
	}
	return o, nil
}

func (repo *academicRepository) queryOfferings(ctx context.Context, where string, args ...interface{}) ([]academic.Offering, error) {
	var rows []offeringRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+offeringCols+" WHERE "+where+" ORDER BY c.name, o.start_time", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying offerings")
	}
	offs := make([]academic.Offering, 0, len(rows))
	for _, r := range rows {
		offs = append(offs, r.offering())
	}
	return offs, nil
}

func (repo *academicRepository) GetOfferingByID(ctx context.Context, id string) (academic.Offering, error) {
	var r offeringRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+offeringCols+" WHERE o.id = $1", id); err != nil {
		return academic.Offering{}, notFoundErr(err, academic.ErrOfferingNotFound, "getting offering")
	}
	return r.offering(), nil
}

func (repo *academicRepository) QueryOfferingsByTerm(ctx context.Context, termID string) ([]academic.Offering, error) {
	return repo.queryOfferings(ctx, "o.term_id = $1", termID)
}

func (repo *academicRepository) QueryOfferingsByCourseAndTerm(ctx context.Context, courseID, termID string) ([]academic.Offering, error) {
	return repo.queryOfferings(ctx, "o.course_id = $1 AND o.term_id = $2", courseID, termID)
}

func (repo *academicRepository) DeleteOffering(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM offerings WHERE id = $1", id)
	return errors.Wrap(err, "deleting offering")
}

// Profiles

const studentCols = `s.id, s.user_id, s.institutional_code, s.program_id, s.term_id, u.name, u.email
	 FROM students s JOIN users u ON u.id = s.user_id`

func (repo *academicRepository) CreateStudent(ctx context.Context, s academic.Student) (academic.Student, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO students (id, user_id, institutional_code, program_id, term_id) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.InstitutionalCode, s.ProgramID, s.TermID,
	)
	if err != nil {
		return academic.Student{}, uniqueErr(err, map[string]error{
			"students_user_id_key":            academic.ErrProfileExists,
			"students_institutional_code_key": academic.ErrCodeExists,
		}, "creating student")
	}
	return s, nil
}

func (repo *academicRepository) getStudent(ctx context.Context, where string, args ...interface{}) (academic.Student, error) {
	var s academic.Student
	if err := repo.db.GetContext(ctx, &s, "SELECT "+studentCols+" WHERE "+where, args...); err != nil {
		return academic.Student{}, notFoundErr(err, academic.ErrStudentNotFound, "getting student")
	}
	return s, nil
}

func (repo *academicRepository) GetStudentByID(ctx context.Context, id string) (academic.Student, error) {
	return repo.getStudent(ctx, "s.id = $1", id)
}

func (repo *academicRepository) GetStudentByUserID(ctx context.Context, userID string) (academic.Student, error) {
	return repo.getStudent(ctx, "s.user_id = $1", userID)
}

func (repo *academicRepository) QueryStudentsByTerm(ctx context.Context, termID string) ([]academic.Student, error) {
	var students []academic.Student
	err := repo.db.SelectContext(ctx, &students, "SELECT "+studentCols+" WHERE s.term_id = $1 ORDER BY u.name", termID)
	return students, errors.Wrap(err, "querying students")
}

func (repo *academicRepository) CreateTeacher(ctx context.Context, t academic.Teacher) (academic.Teacher, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO teachers (id, user_id, speciality) VALUES ($1, $2, $3)", t.ID, t.UserID, t.Speciality)
	if err != nil {
		return academic.Teacher{}, uniqueErr(err, map[string]error{"teachers_user_id_key": academic.ErrProfileExists}, "creating teacher")
	}
	return t, nil
}

func (repo *academicRepository) getTeacher(ctx context.Context, where string, args ...interface{}) (academic.Teacher, error) {
	var t academic.Teacher
	err := repo.db.GetContext(ctx, &t,
		"SELECT t.id, t.user_id, t.speciality, u.name FROM teachers t JOIN users u ON u.id = t.user_id WHERE "+where, args...)
	if err != nil {
		return academic.Teacher{}, notFoundErr(err, academic.ErrTeacherNotFound, "getting teacher")
	}
	return t, nil
}

func (repo *academicRepository) GetTeacherByID(ctx context.Context, id string) (academic.Teacher, error) {
	return repo.getTeacher(ctx, "t.id = $1", id)
}

func (repo *academicRepository) GetTeacherByUserID(ctx context.Context, userID string) (academic.Teacher, error) {
	return repo.getTeacher(ctx, "t.user_id = $1", userID)
}

func (repo *academicRepository) CreateAdmin(ctx context.Context, a academic.Admin) (academic.Admin, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO admins (id, user_id, position) VALUES ($1, $2, $3)", a.ID, a.UserID, a.Position)
	if err != nil {
		return academic.Admin{}, uniqueErr(err, map[string]error{"admins_user_id_key": academic.ErrProfileExists}, "creating admin")
	}
	return a, nil
}

func (repo *academicRepository) GetAdminByUserID(ctx context.Context, userID string) (academic.Admin, error) {
	var a academic.Admin
	err := repo.db.GetContext(ctx, &a,
		"SELECT a.id, a.user_id, a.position, u.name FROM admins a JOIN users u ON u.id = a.user_id WHERE a.user_id = $1", userID)
	if err != nil {
		return academic.Admin{}, notFoundErr(err, academic.ErrAdminNotFound, "getting admin")
	}
	return a, nil
}

// Assignments & enrollments

func (repo *academicRepository) CreateTeacherAssignment(ctx context.Context, ta academic.TeacherAssignment) (academic.TeacherAssignment, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO teacher_assignments (id, teacher_id, offering_id) VALUES ($1, $2, $3)", ta.ID, ta.TeacherID, ta.OfferingID)
	if err != nil {
		return academic.TeacherAssignment{}, uniqueErr(err, map[string]error{
			"teacher_assignments_teacher_id_offering_id_key": academic.ErrAlreadyAssigned,
		}, "creating teacher assignment")
	}
	return ta, nil
}

func (repo *academicRepository) GetTeacherAssignment(ctx context.Context, teacherID, offeringID string) (academic.TeacherAssignment, error) {
	var ta academic.TeacherAssignment
	err := repo.db.GetContext(ctx, &ta,
		"SELECT id, teacher_id, offering_id FROM teacher_assignments WHERE teacher_id = $1 AND offering_id = $2",
		teacherID, offeringID)
	if err != nil {
		return academic.TeacherAssignment{}, notFoundErr(err, academic.ErrAssignmentNotFound, "getting teacher assignment")
	}
	return ta, nil
}

func (repo *academicRepository) CountOfferingAssignments(ctx context.Context, offeringID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM teacher_assignments WHERE offering_id = $1", offeringID)
	return count, errors.Wrap(err, "counting offering assignments")
}

func (repo *academicRepository) DeleteTeacherAssignment(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM teacher_assignments WHERE id = $1", id)
	return errors.Wrap(err, "deleting teacher assignment")
}

func (repo *academicRepository) QueryOfferingsByTeacher(ctx context.Context, teacherID string) ([]academic.Offering, error) {
	return repo.queryOfferings(ctx,
		"o.id IN (SELECT offering_id FROM teacher_assignments WHERE teacher_id = $1)", teacherID)
}

func (repo *academicRepository) CreateEnrollment(ctx context.Context, e academic.Enrollment) (academic.Enrollment, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO enrollments (id, student_id, offering_id, enrolled_at) VALUES ($1, $2, $3, $4)",
		e.ID, e.StudentID, e.OfferingID, e.EnrolledAt)
	if err != nil {
		return academic.Enrollment{}, uniqueErr(err, map[string]error{
			"enrollments_student_id_offering_id_key": academic.ErrAlreadyEnrolled,
		}, "creating enrollment")
	}
	return e, nil
}

func (repo *academicRepository) QueryEnrolledStudents(ctx context.Context, offeringID string) ([]academic.Student, error) {
	var students []academic.Student
	err := repo.db.SelectContext(ctx, &students,
		"SELECT "+studentCols+
			" JOIN enrollments e ON e.student_id = s.id WHERE e.offering_id = $1 ORDER BY u.name", offeringID)
	return students, errors.Wrap(err, "querying enrolled students")
}

func (repo *academicRepository) QueryEnrolledPushTokens(ctx context.Context, offeringID string) ([]string, error) {
	var tokens []string
	err := repo.db.SelectContext(ctx, &tokens,
		`SELECT u.push_token
		 FROM enrollments e
		 JOIN students s ON s.id = e.student_id
		 JOIN users u ON u.id = s.user_id
		 WHERE e.offering_id = $1 AND u.push_token <> '' AND u.is_active`, offeringID)
	return tokens, errors.Wrap(err, "querying enrolled push tokens")
}

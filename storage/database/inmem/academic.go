package inmemdb

import (
	"context"
	"sort"

	"github.com/mkabenga/presencia/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// joinNames fills the read-only joined fields from the users table.
func (repo *academicRepository) userName(userID string) string {
	if usr, ok := repo.db.users[userID]; ok {
		return usr.Name
	}
	return ""
}

func (repo *academicRepository) userEmail(userID string) string {
	if usr, ok := repo.db.users[userID]; ok {
		return usr.Email
	}
	return ""
}

func (repo *academicRepository) student(s academic.Student) academic.Student {
	s.Name = repo.userName(s.UserID)
	s.Email = repo.userEmail(s.UserID)
	return s
}

func (repo *academicRepository) offering(o academic.Offering) academic.Offering {
	if c, ok := repo.db.courses[o.CourseID]; ok {
		o.CourseName = c.Name
	}
	return o
}

// Catalog

func (repo *academicRepository) CreateProgram(ctx context.Context, p academic.Program) (academic.Program, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.programs {
		if existing.Name == p.Name {
			return academic.Program{}, academic.ErrProgramExists
		}
	}
	repo.db.programs[p.ID] = &p
	return p, nil
}

func (repo *academicRepository) QueryAllPrograms(ctx context.Context) ([]academic.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	progs := make([]academic.Program, 0, len(repo.db.programs))
	for _, p := range repo.db.programs {
		progs = append(progs, *p)
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].Name < progs[j].Name })
	return progs, nil
}

func (repo *academicRepository) GetProgramByID(ctx context.Context, id string) (academic.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if p, ok := repo.db.programs[id]; ok {
		return *p, nil
	}
	return academic.Program{}, academic.ErrProgramNotFound
}

func (repo *academicRepository) CreateTerm(ctx context.Context, t academic.Term) (academic.Term, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.terms {
		if existing.ProgramID == t.ProgramID && existing.Name == t.Name {
			return academic.Term{}, academic.ErrTermExists
		}
	}
	repo.db.terms[t.ID] = &t
	return t, nil
}

func (repo *academicRepository) QueryTermsByProgram(ctx context.Context, programID string) ([]academic.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var terms []academic.Term
	for _, t := range repo.db.terms {
		if t.ProgramID == programID {
			terms = append(terms, *t)
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Name < terms[j].Name })
	return terms, nil
}

func (repo *academicRepository) GetTermByID(ctx context.Context, id string) (academic.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if t, ok := repo.db.terms[id]; ok {
		return *t, nil
	}
	return academic.Term{}, academic.ErrTermNotFound
}

func (repo *academicRepository) CreateCourse(ctx context.Context, c academic.Course) (academic.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.courses {
		if existing.Name == c.Name {
			return academic.Course{}, academic.ErrCourseExists
		}
	}
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *academicRepository) QueryAllCourses(ctx context.Context) ([]academic.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	courses := make([]academic.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		courses = append(courses, *c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

func (repo *academicRepository) GetCourseByID(ctx context.Context, id string) (academic.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return academic.Course{}, academic.ErrCourseNotFound
}

func (repo *academicRepository) CreateOffering(ctx context.Context, o academic.Offering) (academic.Offering, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.offerings {
		if existing.CourseID == o.CourseID && existing.TermID == o.TermID &&
			existing.ManagementPeriod == o.ManagementPeriod &&
			existing.StartTime == o.StartTime && existing.EndTime == o.EndTime {
			return academic.Offering{}, academic.ErrOfferingExists
		}
	}
	repo.db.offerings[o.ID] = &o
	return repo.offering(o), nil
}

func (repo *academicRepository) GetOfferingByID(ctx context.Context, id string) (academic.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if o, ok := repo.db.offerings[id]; ok {
		return repo.offering(*o), nil
	}
	return academic.Offering{}, academic.ErrOfferingNotFound
}

func (repo *academicRepository) queryOfferings(match func(academic.Offering) bool) []academic.Offering {
	var offs []academic.Offering
	for _, o := range repo.db.offerings {
		if match(*o) {
			offs = append(offs, repo.offering(*o))
		}
	}
	sort.Slice(offs, func(i, j int) bool {
		if offs[i].CourseName != offs[j].CourseName {
			return offs[i].CourseName < offs[j].CourseName
		}
		return offs[i].StartTime < offs[j].StartTime
	})
	return offs
}

func (repo *academicRepository) QueryOfferingsByTerm(ctx context.Context, termID string) ([]academic.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryOfferings(func(o academic.Offering) bool { return o.TermID == termID }), nil
}

func (repo *academicRepository) QueryOfferingsByCourseAndTerm(ctx context.Context, courseID, termID string) ([]academic.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryOfferings(func(o academic.Offering) bool {
		return o.CourseID == courseID && o.TermID == termID
	}), nil
}

func (repo *academicRepository) DeleteOffering(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.offerings, id)
	for aid, ta := range repo.db.assignments {
		if ta.OfferingID == id {
			delete(repo.db.assignments, aid)
		}
	}
	for eid, e := range repo.db.enrollments {
		if e.OfferingID == id {
			delete(repo.db.enrollments, eid)
		}
	}
	return nil
}

// Profiles

func (repo *academicRepository) CreateStudent(ctx context.Context, s academic.Student) (academic.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.students {
		if existing.UserID == s.UserID {
			return academic.Student{}, academic.ErrProfileExists
		}
		if existing.InstitutionalCode == s.InstitutionalCode {
			return academic.Student{}, academic.ErrCodeExists
		}
	}
	repo.db.students[s.ID] = &s
	return repo.student(s), nil
}

func (repo *academicRepository) GetStudentByID(ctx context.Context, id string) (academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if s, ok := repo.db.students[id]; ok {
		return repo.student(*s), nil
	}
	return academic.Student{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) GetStudentByUserID(ctx context.Context, userID string) (academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, s := range repo.db.students {
		if s.UserID == userID {
			return repo.student(*s), nil
		}
	}
	return academic.Student{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) QueryStudentsByTerm(ctx context.Context, termID string) ([]academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var students []academic.Student
	for _, s := range repo.db.students {
		if s.TermID == termID {
			students = append(students, repo.student(*s))
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *academicRepository) CreateTeacher(ctx context.Context, t academic.Teacher) (academic.Teacher, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.teachers {
		if existing.UserID == t.UserID {
			return academic.Teacher{}, academic.ErrProfileExists
		}
	}
	repo.db.teachers[t.ID] = &t
	t.Name = repo.userName(t.UserID)
	return t, nil
}

func (repo *academicRepository) GetTeacherByID(ctx context.Context, id string) (academic.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if t, ok := repo.db.teachers[id]; ok {
		res := *t
		res.Name = repo.userName(t.UserID)
		return res, nil
	}
	return academic.Teacher{}, academic.ErrTeacherNotFound
}

func (repo *academicRepository) GetTeacherByUserID(ctx context.Context, userID string) (academic.Teacher, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, t := range repo.db.teachers {
		if t.UserID == userID {
			res := *t
			res.Name = repo.userName(t.UserID)
			return res, nil
		}
	}
	return academic.Teacher{}, academic.ErrTeacherNotFound
}

func (repo *academicRepository) CreateAdmin(ctx context.Context, a academic.Admin) (academic.Admin, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.admins {
		if existing.UserID == a.UserID {
			return academic.Admin{}, academic.ErrProfileExists
		}
	}
	repo.db.admins[a.ID] = &a
	a.Name = repo.userName(a.UserID)
	return a, nil
}

func (repo *academicRepository) GetAdminByUserID(ctx context.Context, userID string) (academic.Admin, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, a := range repo.db.admins {
		if a.UserID == userID {
			res := *a
			res.Name = repo.userName(a.UserID)
			return res, nil
		}
	}
	return academic.Admin{}, academic.ErrAdminNotFound
}

// Assignments & enrollments

func (repo *academicRepository) CreateTeacherAssignment(ctx context.Context, ta academic.TeacherAssignment) (academic.TeacherAssignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.assignments {
		if existing.TeacherID == ta.TeacherID && existing.OfferingID == ta.OfferingID {
			return academic.TeacherAssignment{}, academic.ErrAlreadyAssigned
		}
	}
	repo.db.assignments[ta.ID] = &ta
	return ta, nil
}

func (repo *academicRepository) GetTeacherAssignment(ctx context.Context, teacherID, offeringID string) (academic.TeacherAssignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, ta := range repo.db.assignments {
		if ta.TeacherID == teacherID && ta.OfferingID == offeringID {
			return *ta, nil
		}
	}
	return academic.TeacherAssignment{}, academic.ErrAssignmentNotFound
}

func (repo *academicRepository) CountOfferingAssignments(ctx context.Context, offeringID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	count := 0
	for _, ta := range repo.db.assignments {
		if ta.OfferingID == offeringID {
			count++
		}
	}
	return count, nil
}

func (repo *academicRepository) DeleteTeacherAssignment(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.assignments, id)
	return nil
}

func (repo *academicRepository) QueryOfferingsByTeacher(ctx context.Context, teacherID string) ([]academic.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	assigned := make(map[string]struct{})
	for _, ta := range repo.db.assignments {
		if ta.TeacherID == teacherID {
			assigned[ta.OfferingID] = struct{}{}
		}
	}
	return repo.queryOfferings(func(o academic.Offering) bool {
		_, ok := assigned[o.ID]
		return ok
	}), nil
}

func (repo *academicRepository) CreateEnrollment(ctx context.Context, e academic.Enrollment) (academic.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.enrollments {
		if existing.StudentID == e.StudentID && existing.OfferingID == e.OfferingID {
			return academic.Enrollment{}, academic.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollments[e.ID] = &e
	return e, nil
}

func (repo *academicRepository) QueryEnrolledStudents(ctx context.Context, offeringID string) ([]academic.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var students []academic.Student
	for _, e := range repo.db.enrollments {
		if e.OfferingID != offeringID {
			continue
		}
		if s, ok := repo.db.students[e.StudentID]; ok {
			students = append(students, repo.student(*s))
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *academicRepository) QueryEnrolledPushTokens(ctx context.Context, offeringID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var tokens []string
	for _, e := range repo.db.enrollments {
		if e.OfferingID != offeringID {
			continue
		}
		s, ok := repo.db.students[e.StudentID]
		if !ok {
			continue
		}
		if usr, ok := repo.db.users[s.UserID]; ok && usr.IsActive && usr.PushToken != "" {
			tokens = append(tokens, usr.PushToken)
		}
	}
	return tokens, nil
}

// Package inmemdb implements the core repositories on in-memory maps. It
// backs tests and local development without a database.
package inmemdb

import (
	"sync"

	"github.com/mkabenga/presencia/core/academic"
	"github.com/mkabenga/presencia/core/attendance"
	"github.com/mkabenga/presencia/core/calendar"
	"github.com/mkabenga/presencia/core/permit"
	"github.com/mkabenga/presencia/core/user"
)

type DB struct {
	mutex sync.RWMutex

	users map[string]*user.User

	programs    map[string]*academic.Program
	terms       map[string]*academic.Term
	courses     map[string]*academic.Course
	offerings   map[string]*academic.Offering
	students    map[string]*academic.Student
	teachers    map[string]*academic.Teacher
	admins      map[string]*academic.Admin
	assignments map[string]*academic.TeacherAssignment
	enrollments map[string]*academic.Enrollment

	specialDays map[string]*calendar.SpecialDay

	sessions      map[string]*attendance.Session
	registrations map[string]*attendance.Registration

	permits map[string]*permit.Permit
}

func NewDB() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		programs:      make(map[string]*academic.Program),
		terms:         make(map[string]*academic.Term),
		courses:       make(map[string]*academic.Course),
		offerings:     make(map[string]*academic.Offering),
		students:      make(map[string]*academic.Student),
		teachers:      make(map[string]*academic.Teacher),
		admins:        make(map[string]*academic.Admin),
		assignments:   make(map[string]*academic.TeacherAssignment),
		enrollments:   make(map[string]*academic.Enrollment),
		specialDays:   make(map[string]*calendar.SpecialDay),
		sessions:      make(map[string]*attendance.Session),
		registrations: make(map[string]*attendance.Registration),
		permits:       make(map[string]*permit.Permit),
	}
}

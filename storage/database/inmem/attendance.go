package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) registration(reg attendance.Registration) attendance.Registration {
	if s, ok := repo.db.students[reg.StudentID]; ok {
		if usr, ok := repo.db.users[s.UserID]; ok {
			reg.StudentName = usr.Name
		}
	}
	return reg
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.sessions {
		if existing.OfferingID == sess.OfferingID && core.SameDate(existing.Date, sess.Date) {
			return attendance.Session{}, attendance.ErrDuplicateSession
		}
	}
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByID(ctx context.Context, id string) (attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) GetSessionByOfferingAndDate(ctx context.Context, offeringID string, date time.Time) (attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, sess := range repo.db.sessions {
		if sess.OfferingID == offeringID && core.SameDate(sess.Date, date) {
			return *sess, nil
		}
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) QuerySessionsByOffering(ctx context.Context, offeringID string) ([]attendance.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	var sessions []attendance.Session
	for _, sess := range repo.db.sessions {
		if sess.OfferingID == offeringID {
			sessions = append(sessions, *sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Date.Before(sessions[j].Date) })
	return sessions, nil
}

func (repo *attendanceRepository) CreateRegistration(ctx context.Context, reg attendance.Registration) (attendance.Registration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.registrations {
		if existing.StudentID == reg.StudentID && existing.SessionID == reg.SessionID {
			return attendance.Registration{}, attendance.ErrDuplicateRegistration
		}
	}
	repo.db.registrations[reg.ID] = &reg
	return repo.registration(reg), nil
}

func (repo *attendanceRepository) GetRegistrationByID(ctx context.Context, id string) (attendance.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	if reg, ok := repo.db.registrations[id]; ok {
		return repo.registration(*reg), nil
	}
	return attendance.Registration{}, attendance.ErrRegistrationNotFound
}

func (repo *attendanceRepository) queryRegistrations(match func(attendance.Registration) bool) []attendance.Registration {
	var regs []attendance.Registration
	for _, reg := range repo.db.registrations {
		if match(*reg) {
			regs = append(regs, repo.registration(*reg))
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].RecordedAt.Before(regs[j].RecordedAt) })
	return regs
}

func (repo *attendanceRepository) QueryRegistrationsBySession(ctx context.Context, sessionID string) ([]attendance.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryRegistrations(func(r attendance.Registration) bool { return r.SessionID == sessionID }), nil
}

func (repo *attendanceRepository) QueryRegistrationsByStudent(ctx context.Context, studentID string) ([]attendance.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryRegistrations(func(r attendance.Registration) bool { return r.StudentID == studentID }), nil
}

func (repo *attendanceRepository) QueryAllRegistrations(ctx context.Context) ([]attendance.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryRegistrations(func(attendance.Registration) bool { return true }), nil
}

func (repo *attendanceRepository) SetRegistrationState(ctx context.Context, id string, state attendance.State) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	reg, ok := repo.db.registrations[id]
	if !ok {
		return attendance.ErrRegistrationNotFound
	}
	reg.State = state
	return nil
}

func (repo *attendanceRepository) SetRegistrationPermit(ctx context.Context, id string, permitID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	reg, ok := repo.db.registrations[id]
	if !ok {
		return attendance.ErrRegistrationNotFound
	}
	reg.PermitID = &permitID
	return nil
}

// SessionTermIDs backs the permit ledger's cross-term check.
func (repo *attendanceRepository) SessionTermIDs(ctx context.Context, sessionIDs []string) (map[string]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	terms := make(map[string]string, len(sessionIDs))
	for _, id := range sessionIDs {
		sess, ok := repo.db.sessions[id]
		if !ok {
			continue
		}
		if off, ok := repo.db.offerings[sess.OfferingID]; ok {
			terms[id] = off.TermID
		}
	}
	return terms, nil
}

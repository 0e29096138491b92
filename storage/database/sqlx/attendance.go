package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core/attendance"
)

type registrationRow struct {
	ID          string       `db:"id"`
	StudentID   string       `db:"student_id"`
	SessionID   string       `db:"session_id"`
	RecordedAt  sql.NullTime `db:"recorded_at"`
	Latitude    *float64     `db:"latitude"`
	Longitude   *float64     `db:"longitude"`
	State       string       `db:"state"`
	PermitID    *string      `db:"permit_id"`
	StudentName string       `db:"student_name"`
}

func (r registrationRow) registration() attendance.Registration {
	reg := attendance.Registration{
		ID:          r.ID,
		StudentID:   r.StudentID,
		SessionID:   r.SessionID,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		State:       attendance.State(r.State),
		PermitID:    r.PermitID,
		StudentName: r.StudentName,
	}
	if r.RecordedAt.Valid {
		reg.RecordedAt = r.RecordedAt.Time
	}
	return reg
}

const registrationCols = `r.id, r.student_id, r.session_id, r.recorded_at, r.latitude, r.longitude, r.state, r.permit_id, u.name AS student_name
	 FROM registrations r
	 JOIN students s ON s.id = r.student_id
	 JOIN users u ON u.id = s.user_id`

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, sess attendance.Session) (attendance.Session, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO sessions (id, offering_id, date, start_time, end_time, topic, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.OfferingID, sess.Date, sess.StartTime, sess.EndTime, sess.Topic, sess.CreatedAt,
	)
	if err != nil {
		return attendance.Session{}, uniqueErr(err, map[string]error{
			"sessions_offering_id_date_key": attendance.ErrDuplicateSession,
		}, "creating session")
	}
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByID(ctx context.Context, id string) (attendance.Session, error) {
	var sess attendance.Session
	err := repo.db.GetContext(ctx, &sess,
		"SELECT id, offering_id, date, start_time, end_time, topic, created_at FROM sessions WHERE id = $1", id)
	if err != nil {
		return attendance.Session{}, notFoundErr(err, attendance.ErrSessionNotFound, "getting session")
	}
	return sess, nil
}

func (repo *attendanceRepository) GetSessionByOfferingAndDate(ctx context.Context, offeringID string, date time.Time) (attendance.Session, error) {
	var sess attendance.Session
	err := repo.db.GetContext(ctx, &sess,
		`SELECT id, offering_id, date, start_time, end_time, topic, created_at
		 FROM sessions WHERE offering_id = $1 AND date = $2`, offeringID, date)
	if err != nil {
		return attendance.Session{}, notFoundErr(err, attendance.ErrSessionNotFound, "getting session")
	}
	return sess, nil
}

func (repo *attendanceRepository) QuerySessionsByOffering(ctx context.Context, offeringID string) ([]attendance.Session, error) {
	var sessions []attendance.Session
	err := repo.db.SelectContext(ctx, &sessions,
		`SELECT id, offering_id, date, start_time, end_time, topic, created_at
		 FROM sessions WHERE offering_id = $1 ORDER BY date`, offeringID)
	return sessions, errors.Wrap(err, "querying sessions")
}

func (repo *attendanceRepository) CreateRegistration(ctx context.Context, reg attendance.Registration) (attendance.Registration, error) {
	recordedAt := sql.NullTime{Time: reg.RecordedAt, Valid: !reg.RecordedAt.IsZero()}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO registrations (id, student_id, session_id, recorded_at, latitude, longitude, state, permit_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reg.ID, reg.StudentID, reg.SessionID, recordedAt, reg.Latitude, reg.Longitude, reg.State, reg.PermitID,
	)
	if err != nil {
		return attendance.Registration{}, uniqueErr(err, map[string]error{
			"registrations_student_id_session_id_key": attendance.ErrDuplicateRegistration,
		}, "creating registration")
	}
	return reg, nil
}

func (repo *attendanceRepository) GetRegistrationByID(ctx context.Context, id string) (attendance.Registration, error) {
	var r registrationRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+registrationCols+" WHERE r.id = $1", id)
	if err != nil {
		return attendance.Registration{}, notFoundErr(err, attendance.ErrRegistrationNotFound, "getting registration")
	}
	return r.registration(), nil
}

func (repo *attendanceRepository) queryRegistrations(ctx context.Context, where string, args ...interface{}) ([]attendance.Registration, error) {
	var rows []registrationRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+registrationCols+" WHERE "+where+" ORDER BY r.recorded_at", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying registrations")
	}
	regs := make([]attendance.Registration, 0, len(rows))
	for _, r := range rows {
		regs = append(regs, r.registration())
	}
	return regs, nil
}

func (repo *attendanceRepository) QueryRegistrationsBySession(ctx context.Context, sessionID string) ([]attendance.Registration, error) {
	return repo.queryRegistrations(ctx, "r.session_id = $1", sessionID)
}

func (repo *attendanceRepository) QueryRegistrationsByStudent(ctx context.Context, studentID string) ([]attendance.Registration, error) {
	return repo.queryRegistrations(ctx, "r.student_id = $1", studentID)
}

func (repo *attendanceRepository) QueryAllRegistrations(ctx context.Context) ([]attendance.Registration, error) {
	return repo.queryRegistrations(ctx, "true")
}

func (repo *attendanceRepository) SetRegistrationState(ctx context.Context, id string, state attendance.State) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE registrations SET state = $2 WHERE id = $1", id, state)
	return errors.Wrap(err, "setting registration state")
}

func (repo *attendanceRepository) SetRegistrationPermit(ctx context.Context, id string, permitID string) error {
	_, err := repo.db.ExecContext(ctx, "UPDATE registrations SET permit_id = $2 WHERE id = $1", id, permitID)
	return errors.Wrap(err, "setting registration permit")
}

// SessionTermIDs resolves each session to the term of its offering; it backs
// the permit ledger's cross-term check.
func (repo *attendanceRepository) SessionTermIDs(ctx context.Context, sessionIDs []string) (map[string]string, error) {
	if len(sessionIDs) == 0 {
		return map[string]string{}, nil
	}
	query, args, err := sqlx.In(
		`SELECT s.id, o.term_id FROM sessions s JOIN offerings o ON o.id = s.offering_id WHERE s.id IN (?)`,
		sessionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building session terms query")
	}
	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying session terms")
	}
	defer func() { _ = rows.Close() }()

	terms := make(map[string]string, len(sessionIDs))
	for rows.Next() {
		var id, termID string
		if err = rows.Scan(&id, &termID); err != nil {
			return nil, errors.Wrap(err, "querying session terms")
		}
		terms[id] = termID
	}
	return terms, errors.Wrap(rows.Err(), "querying session terms")
}

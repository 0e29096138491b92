package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core/permit"
)

type permitRow struct {
	ID          string         `db:"id"`
	StudentID   string         `db:"student_id"`
	ApproverID  sql.NullString `db:"approver_id"`
	Reason      string         `db:"reason"`
	State       string         `db:"state"`
	RequestedAt time.Time      `db:"requested_at"`
	StartDate   time.Time      `db:"start_date"`
	EndDate     sql.NullTime   `db:"end_date"`
}

func (r permitRow) permit() permit.Permit {
	p := permit.Permit{
		ID:          r.ID,
		StudentID:   r.StudentID,
		ApproverID:  r.ApproverID.String,
		Reason:      r.Reason,
		State:       permit.State(r.State),
		RequestedAt: r.RequestedAt,
		StartDate:   r.StartDate,
	}
	if r.EndDate.Valid {
		p.EndDate = r.EndDate.Time
	}
	return p
}

const permitCols = "id, student_id, approver_id, reason, state, requested_at, start_date, end_date"

type permitRepository struct {
	db *sqlx.DB
}

var _ permit.Repository = (*permitRepository)(nil) // interface compliance check

func NewPermitRepository(db *sqlx.DB) *permitRepository {
	return &permitRepository{db: db}
}

func (repo *permitRepository) CreatePermit(ctx context.Context, p permit.Permit) (permit.Permit, error) {
	endDate := sql.NullTime{Time: p.EndDate, Valid: !p.EndDate.IsZero()}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO permits (id, student_id, reason, state, requested_at, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.StudentID, p.Reason, p.State, p.RequestedAt, p.StartDate, endDate,
	)
	if err != nil {
		return permit.Permit{}, errors.Wrap(err, "creating permit")
	}
	if err = repo.AddPermitSessions(ctx, p.ID, p.CoveredSessionIDs); err != nil {
		return permit.Permit{}, err
	}
	return p, nil
}

func (repo *permitRepository) coveredSessions(ctx context.Context, permitIDs ...string) (map[string][]string, error) {
	if len(permitIDs) == 0 {
		return map[string][]string{}, nil
	}
	query, args, err := sqlx.In("SELECT permit_id, session_id FROM permit_sessions WHERE permit_id IN (?)", permitIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building covered sessions query")
	}
	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying covered sessions")
	}
	defer func() { _ = rows.Close() }()

	covered := make(map[string][]string, len(permitIDs))
	for rows.Next() {
		var permitID, sessionID string
		if err = rows.Scan(&permitID, &sessionID); err != nil {
			return nil, errors.Wrap(err, "querying covered sessions")
		}
		covered[permitID] = append(covered[permitID], sessionID)
	}
	return covered, errors.Wrap(rows.Err(), "querying covered sessions")
}

func (repo *permitRepository) GetPermitByID(ctx context.Context, id string) (permit.Permit, error) {
	var r permitRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+permitCols+" FROM permits WHERE id = $1", id); err != nil {
		return permit.Permit{}, notFoundErr(err, permit.ErrNotFound, "getting permit")
	}
	covered, err := repo.coveredSessions(ctx, id)
	if err != nil {
		return permit.Permit{}, err
	}
	p := r.permit()
	p.CoveredSessionIDs = covered[id]
	return p, nil
}

func (repo *permitRepository) queryPermits(ctx context.Context, where string, args ...interface{}) ([]permit.Permit, error) {
	var rows []permitRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+permitCols+" FROM permits WHERE "+where+" ORDER BY requested_at DESC", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying permits")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	covered, err := repo.coveredSessions(ctx, ids...)
	if err != nil {
		return nil, err
	}
	permits := make([]permit.Permit, 0, len(rows))
	for _, r := range rows {
		p := r.permit()
		p.CoveredSessionIDs = covered[p.ID]
		permits = append(permits, p)
	}
	return permits, nil
}

func (repo *permitRepository) QueryPermitsByStudent(ctx context.Context, studentID string) ([]permit.Permit, error) {
	return repo.queryPermits(ctx, "student_id = $1", studentID)
}

func (repo *permitRepository) QueryAllPermits(ctx context.Context) ([]permit.Permit, error) {
	return repo.queryPermits(ctx, "true")
}

func (repo *permitRepository) SetPermitState(ctx context.Context, id string, state permit.State, approverID string) error {
	_, err := repo.db.ExecContext(ctx,
		"UPDATE permits SET state = $2, approver_id = $3 WHERE id = $1", id, state, approverID)
	return errors.Wrap(err, "setting permit state")
}

func (repo *permitRepository) AddPermitSessions(ctx context.Context, id string, sessionIDs []string) error {
	for _, sessionID := range sessionIDs {
		_, err := repo.db.ExecContext(ctx,
			"INSERT INTO permit_sessions (permit_id, session_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			id, sessionID)
		if err != nil {
			return errors.Wrap(err, "adding permit session")
		}
	}
	return nil
}

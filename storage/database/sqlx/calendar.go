package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mkabenga/presencia/core/calendar"
)

type specialDayRow struct {
	ID                string         `db:"id"`
	Date              time.Time      `db:"date"`
	Kind              calendar.Kind  `db:"kind"`
	Description       string         `db:"description"`
	AffectsAttendance bool           `db:"affects_attendance"`
	CreatedBy         sql.NullString `db:"created_by"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r specialDayRow) specialDay() calendar.SpecialDay {
	return calendar.SpecialDay{
		ID:                r.ID,
		Date:              r.Date,
		Kind:              r.Kind,
		Description:       r.Description,
		AffectsAttendance: r.AffectsAttendance,
		CreatedBy:         r.CreatedBy.String,
		CreatedAt:         r.CreatedAt,
	}
}

const specialDayCols = "id, date, kind, description, affects_attendance, created_by, created_at"

type calendarRepository struct {
	db *sqlx.DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *sqlx.DB) *calendarRepository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) CreateSpecialDay(ctx context.Context, sd calendar.SpecialDay) (calendar.SpecialDay, error) {
	createdBy := sql.NullString{String: sd.CreatedBy, Valid: sd.CreatedBy != ""}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO special_days (id, date, kind, description, affects_attendance, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sd.ID, sd.Date, sd.Kind, sd.Description, sd.AffectsAttendance, createdBy, sd.CreatedAt,
	)
	if err != nil {
		return calendar.SpecialDay{}, uniqueErr(err, map[string]error{
			"special_days_date_key": calendar.ErrDateExists,
		}, "creating special day")
	}
	return sd, nil
}

func (repo *calendarRepository) GetSpecialDayByDate(ctx context.Context, date time.Time) (calendar.SpecialDay, error) {
	var r specialDayRow
	err := repo.db.GetContext(ctx, &r, "SELECT "+specialDayCols+" FROM special_days WHERE date = $1", date)
	if err != nil {
		return calendar.SpecialDay{}, notFoundErr(err, calendar.ErrNotFound, "getting special day")
	}
	return r.specialDay(), nil
}

func (repo *calendarRepository) querySpecialDays(ctx context.Context, where string, args ...interface{}) ([]calendar.SpecialDay, error) {
	var rows []specialDayRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT "+specialDayCols+" FROM special_days WHERE "+where+" ORDER BY date", args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying special days")
	}
	days := make([]calendar.SpecialDay, 0, len(rows))
	for _, r := range rows {
		days = append(days, r.specialDay())
	}
	return days, nil
}

func (repo *calendarRepository) QueryAllSpecialDays(ctx context.Context) ([]calendar.SpecialDay, error) {
	return repo.querySpecialDays(ctx, "true")
}

func (repo *calendarRepository) QuerySpecialDaysInRange(ctx context.Context, from, to time.Time) ([]calendar.SpecialDay, error) {
	return repo.querySpecialDays(ctx, "affects_attendance AND date >= $1 AND date <= $2", from, to)
}

func (repo *calendarRepository) DeleteSpecialDay(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM special_days WHERE id = $1", id)
	return errors.Wrap(err, "deleting special day")
}

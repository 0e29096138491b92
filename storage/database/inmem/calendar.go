package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/mkabenga/presencia/core"
	"github.com/mkabenga/presencia/core/calendar"
)

type calendarRepository struct {
	db *DB
}

var _ calendar.Repository = (*calendarRepository)(nil) // interface compliance check

func NewCalendarRepository(db *DB) *calendarRepository {
	return &calendarRepository{db: db}
}

func (repo *calendarRepository) CreateSpecialDay(ctx context.Context, sd calendar.SpecialDay) (calendar.SpecialDay, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, existing := range repo.db.specialDays {
		if core.SameDate(existing.Date, sd.Date) {
			return calendar.SpecialDay{}, calendar.ErrDateExists
		}
	}
	repo.db.specialDays[sd.ID] = &sd
	return sd, nil
}

func (repo *calendarRepository) GetSpecialDayByDate(ctx context.Context, date time.Time) (calendar.SpecialDay, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, sd := range repo.db.specialDays {
		if core.SameDate(sd.Date, date) {
			return *sd, nil
		}
	}
	return calendar.SpecialDay{}, calendar.ErrNotFound
}

func (repo *calendarRepository) query(match func(calendar.SpecialDay) bool) []calendar.SpecialDay {
	var days []calendar.SpecialDay
	for _, sd := range repo.db.specialDays {
		if match(*sd) {
			days = append(days, *sd)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

func (repo *calendarRepository) QueryAllSpecialDays(ctx context.Context) ([]calendar.SpecialDay, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(calendar.SpecialDay) bool { return true }), nil
}

func (repo *calendarRepository) QuerySpecialDaysInRange(ctx context.Context, from, to time.Time) ([]calendar.SpecialDay, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(func(sd calendar.SpecialDay) bool {
		return sd.AffectsAttendance && !sd.Date.Before(from) && !sd.Date.After(to)
	}), nil
}

func (repo *calendarRepository) DeleteSpecialDay(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.specialDays, id)
	return nil
}

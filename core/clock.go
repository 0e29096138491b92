package core

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// NowFunc returns the current instant; swapped out in tests.
var NowFunc = time.Now

const timeOfDayLayout = "15:04"

var errInvalidTimeOfDay = errors.New("invalid time of day, expected HH:MM")

// TimeOfDay is a zone-less wall-clock time (minutes since midnight).
// Offerings and sessions are scheduled in the institution's civil time, so
// their times carry no zone; see NormalizeCivil for how instants are compared
// against them.
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(timeOfDayLayout, s)
	if err != nil {
		return 0, errors.Wrap(errInvalidTimeOfDay, s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int               { return int(t) / 60 }
func (t TimeOfDay) Minute() int             { return int(t) % 60 }
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Minute }

func (t TimeOfDay) String() string {
	return time.Date(0, 1, 1, t.Hour(), t.Minute(), 0, 0, time.UTC).Format(timeOfDayLayout)
}

// TimeOfDayOf extracts the wall-clock time of an instant, in its own location.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return NewTimeOfDay(ts.Hour(), ts.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errInvalidTimeOfDay
	}
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = tod
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) { return t.String(), nil }

func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		tod, err := ParseTimeOfDay(v)
		if err != nil {
			// Postgres TIME columns scan as "15:04:05"
			ts, tErr := time.Parse("15:04:05", v)
			if tErr != nil {
				return err
			}
			tod = NewTimeOfDay(ts.Hour(), ts.Minute())
		}
		*t = tod
		return nil
	case []byte:
		return t.Scan(string(v))
	case time.Time:
		*t = TimeOfDayOf(v)
		return nil
	}
	return errors.Errorf("cannot scan %T into TimeOfDay", src)
}

// CivilDate truncates an instant to its calendar date (midnight UTC marker).
func CivilDate(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two civil dates fall on the same calendar day.
func SameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// CombineCivil builds the naive civil instant of `date` at wall-clock `tod`.
// The result carries UTC only as a marker; it is not a real UTC instant.
func CombineCivil(date time.Time, tod TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
}

// NormalizeCivil converts a zone-aware instant to the given local zone and
// strips the zone, yielding a naive civil timestamp comparable with
// CombineCivil output. Subtracting a zone-aware instant from a naive one
// directly is invalid; both sides must go through this normalization.
func NormalizeCivil(ts time.Time, loc *time.Location) time.Time {
	local := ts.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
}

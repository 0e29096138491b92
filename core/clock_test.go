package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "00:00", want: NewTimeOfDay(0, 0)},
		{in: "07:45", want: NewTimeOfDay(7, 45)},
		{in: "23:59", want: NewTimeOfDay(23, 59)},
		{in: "24:00", wantErr: true},
		{in: "7:45am", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_String(t *testing.T) {
	assert.Equal(t, "07:05", NewTimeOfDay(7, 5).String())
	assert.Equal(t, "00:00", TimeOfDay(0).String())
	assert.Equal(t, "23:59", NewTimeOfDay(23, 59).String())
}

func TestTimeOfDay_JSON(t *testing.T) {
	data, err := json.Marshal(NewTimeOfDay(13, 30))
	require.NoError(t, err)
	assert.Equal(t, `"13:30"`, string(data))

	var tod TimeOfDay
	require.NoError(t, json.Unmarshal([]byte(`"08:15"`), &tod))
	assert.Equal(t, NewTimeOfDay(8, 15), tod)

	assert.Error(t, json.Unmarshal([]byte(`"late"`), &tod))
	assert.Error(t, json.Unmarshal([]byte(`815`), &tod))
}

func TestTimeOfDay_Scan(t *testing.T) {
	var tod TimeOfDay

	require.NoError(t, tod.Scan("09:30"))
	assert.Equal(t, NewTimeOfDay(9, 30), tod)

	// Postgres TIME columns come back with seconds
	require.NoError(t, tod.Scan("09:30:00"))
	assert.Equal(t, NewTimeOfDay(9, 30), tod)

	require.NoError(t, tod.Scan([]byte("18:05")))
	assert.Equal(t, NewTimeOfDay(18, 5), tod)

	require.NoError(t, tod.Scan(time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC)))
	assert.Equal(t, NewTimeOfDay(14, 45), tod)

	assert.Error(t, tod.Scan(12.5))
}

func TestNormalizeCivil(t *testing.T) {
	loc, err := time.LoadLocation("America/La_Paz") // UTC-4, no DST
	require.NoError(t, err)

	// 11:45 UTC is 07:45 at the institution
	ts := time.Date(2025, 3, 10, 11, 45, 12, 0, time.UTC)
	got := NormalizeCivil(ts, loc)
	want := time.Date(2025, 3, 10, 7, 45, 12, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)

	// comparable with CombineCivil output
	sessionStart := CombineCivil(CivilDate(got), NewTimeOfDay(7, 30))
	assert.Equal(t, 15*time.Minute+12*time.Second, got.Sub(sessionStart))
}

func TestCivilDate(t *testing.T) {
	ts := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	date := CivilDate(ts)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), date)
	assert.True(t, SameDate(ts, date))
	assert.False(t, SameDate(ts, date.AddDate(0, 0, 1)))
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("monday")
	require.True(t, ok)
	assert.Equal(t, time.Monday, d)

	d, ok = ParseWeekday(" Sunday ")
	require.True(t, ok)
	assert.Equal(t, time.Sunday, d)

	_, ok = ParseWeekday("someday")
	assert.False(t, ok)
}

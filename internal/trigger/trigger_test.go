package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local) // a Monday

func TestBuild_Daily(t *testing.T) {
	spec := Build(Daily, 8, 30, nil, testNow)

	assert.Equal(t, 8, spec.Hour)
	assert.Equal(t, 30, spec.Minute)
	assert.True(t, spec.Repeats)
	assert.Nil(t, spec.Weekday)
	assert.Nil(t, spec.Day)
	assert.Nil(t, spec.Date)
}

func TestBuild_WeeklyHonorsFirstWeekdayOnly(t *testing.T) {
	// Multiple selected weekdays collapse to the first. This mirrors how the
	// app has always behaved; downstream views rely on a single weekday per
	// trigger, so pin it here.
	spec := Build(Weekly, 9, 30, &RecurringPattern{Weekdays: []int{3, 5, 6}}, testNow)

	require.NotNil(t, spec.Weekday)
	assert.Equal(t, 3, *spec.Weekday)
	assert.Equal(t, 9, spec.Hour)
	assert.Equal(t, 30, spec.Minute)
	assert.True(t, spec.Repeats)
}

func TestBuild_WeeklyDefaultsToTodaysWeekday(t *testing.T) {
	spec := Build(Weekly, 9, 0, nil, testNow)

	require.NotNil(t, spec.Weekday)
	assert.Equal(t, int(time.Monday), *spec.Weekday)
}

func TestBuild_Monthly(t *testing.T) {
	spec := Build(Monthly, 7, 15, &RecurringPattern{DayOfMonth: 20}, testNow)

	require.NotNil(t, spec.Day)
	assert.Equal(t, 20, *spec.Day)
	assert.True(t, spec.Repeats)
}

func TestBuild_MonthlyDefaultsToTodaysDay(t *testing.T) {
	spec := Build(Monthly, 7, 15, nil, testNow)

	require.NotNil(t, spec.Day)
	assert.Equal(t, 15, *spec.Day)
}

func TestBuild_CustomOneShot(t *testing.T) {
	// 14:00 has not passed at 10:00, so the one-shot lands today.
	spec := Build(Custom, 14, 0, &RecurringPattern{}, testNow)

	require.NotNil(t, spec.Date)
	assert.False(t, spec.Repeats)
	want := time.Date(2024, 1, 15, 14, 0, 0, 0, time.Local)
	assert.Equal(t, want, *spec.Date)
}

func TestBuild_CustomOneShotRollsToTomorrow(t *testing.T) {
	spec := Build(Custom, 8, 0, nil, testNow)

	require.NotNil(t, spec.Date)
	want := time.Date(2024, 1, 16, 8, 0, 0, 0, time.Local)
	assert.Equal(t, want, *spec.Date)
}

func TestBuild_CustomWithIntervalRepeats(t *testing.T) {
	spec := Build(Custom, 14, 0, &RecurringPattern{IntervalDays: 2}, testNow)

	require.NotNil(t, spec.Date)
	assert.True(t, spec.Repeats)
}

func TestBuild_UnknownFrequencyFallsBackToDaily(t *testing.T) {
	spec := Build(Frequency("hourly"), 6, 45, nil, testNow)

	assert.True(t, spec.Repeats)
	assert.Nil(t, spec.Weekday)
	assert.Nil(t, spec.Day)
	assert.Nil(t, spec.Date)
}

func TestCronExpr(t *testing.T) {
	weekday := 3
	day := 20

	tests := []struct {
		name string
		spec Spec
		want string
	}{
		{"daily", Spec{Hour: 8, Minute: 0, Repeats: true}, "0 8 * * *"},
		{"weekly", Spec{Hour: 9, Minute: 30, Weekday: &weekday, Repeats: true}, "30 9 * * 3"},
		{"monthly", Spec{Hour: 7, Minute: 15, Day: &day, Repeats: true}, "15 7 20 * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, ok := tt.spec.CronExpr()
			require.True(t, ok)
			assert.Equal(t, tt.want, expr)
		})
	}
}

func TestCronExpr_DateBasedHasNoCronForm(t *testing.T) {
	at := testNow.Add(time.Hour)
	_, ok := OneShot(at).CronExpr()
	assert.False(t, ok)
}

func TestNextFire_Daily(t *testing.T) {
	spec := Build(Daily, 8, 0, nil, testNow)

	next, ok := NextFire(spec, testNow)
	require.True(t, ok)
	// 08:00 already passed at 10:00, so the next fire is tomorrow.
	assert.Equal(t, time.Date(2024, 1, 16, 8, 0, 0, 0, time.Local), next)

	early := time.Date(2024, 1, 15, 7, 0, 0, 0, time.Local)
	next, ok = NextFire(spec, early)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.Local), next)
}

func TestNextFire_WeeklyLandsOnConfiguredWeekday(t *testing.T) {
	spec := Build(Weekly, 9, 30, &RecurringPattern{Weekdays: []int{3}}, testNow)

	next, ok := NextFire(spec, testNow)
	require.True(t, ok)
	assert.Equal(t, time.Wednesday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.True(t, next.After(testNow))
}

func TestNextFire_MonthlyLandsOnConfiguredDay(t *testing.T) {
	spec := Build(Monthly, 7, 0, &RecurringPattern{DayOfMonth: 20}, testNow)

	next, ok := NextFire(spec, testNow)
	require.True(t, ok)
	assert.Equal(t, 20, next.Day())
	assert.Equal(t, 7, next.Hour())
}

func TestNextFire_OneShot(t *testing.T) {
	at := testNow.Add(2 * time.Hour)
	spec := OneShot(at)

	next, ok := NextFire(spec, testNow)
	require.True(t, ok)
	assert.Equal(t, at, next)

	_, ok = NextFire(spec, at.Add(time.Minute))
	assert.False(t, ok)
}

func TestNextFire_RepeatingDateReArms(t *testing.T) {
	spec := Build(Custom, 14, 0, &RecurringPattern{IntervalDays: 1}, testNow)
	require.NotNil(t, spec.Date)

	after := spec.Date.Add(time.Minute)
	next, ok := NextFire(spec, after)
	require.True(t, ok)
	assert.True(t, next.After(after))
	assert.Equal(t, 14, next.Hour())
}

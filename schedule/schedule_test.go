package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephdrac/powergroup/clock"
)

func berlin(t *testing.T) *time.Location {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	return loc
}

func TestTimeOfDayNext(t *testing.T) {
	loc := berlin(t)

	for _, tt := range []struct {
		name string
		now  time.Time
		at   TimeOfDay
		want time.Time
	}{
		{
			name: "Later Today",
			now:  time.Date(2026, time.June, 1, 22, 0, 0, 0, loc),
			at:   TimeOfDay{Hour: 23, Minute: 30},
			want: time.Date(2026, time.June, 1, 23, 30, 0, 0, loc),
		},
		{
			name: "Midnight Is Tomorrow",
			now:  time.Date(2026, time.June, 1, 22, 0, 0, 0, loc),
			at:   Midnight,
			want: time.Date(2026, time.June, 2, 0, 0, 0, 0, loc),
		},
		{
			name: "Exactly Now Is Tomorrow",
			now:  time.Date(2026, time.June, 2, 0, 0, 0, 0, loc),
			at:   Midnight,
			want: time.Date(2026, time.June, 3, 0, 0, 0, 0, loc),
		},
		{
			name: "Other Zone",
			now:  time.Date(2026, time.June, 1, 22, 30, 0, 0, time.UTC),
			at:   Midnight,
			want: time.Date(2026, time.June, 3, 0, 0, 0, 0, loc),
		},
		{
			name: "Across DST Change",
			now:  time.Date(2026, time.March, 28, 12, 0, 0, 0, loc),
			at:   Midnight,
			want: time.Date(2026, time.March, 29, 0, 0, 0, 0, loc),
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(tt.at.Next(tt.now, loc)), "want %s got %s", tt.want, tt.at.Next(tt.now, loc))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("00:00")
	require.NoError(t, err)
	assert.Equal(t, Midnight, got)

	got, err = ParseTimeOfDay("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59, Second: 30}, got)
	assert.Equal(t, "23:59:30", got.String())

	_, err = ParseTimeOfDay("midnight")
	require.Error(t, err)
}

func TestDaily(t *testing.T) {
	loc := berlin(t)
	c := clock.NewFake(time.Date(2026, time.June, 1, 18, 0, 0, 0, loc))

	var fired []time.Time
	job := Daily(c, Midnight, loc, func(at time.Time) {
		fired = append(fired, at)
	})

	c.Advance(5 * time.Hour)
	require.Len(t, fired, 0)

	c.Advance(time.Hour)
	require.Len(t, fired, 1)
	assert.True(t, fired[0].Equal(time.Date(2026, time.June, 2, 0, 0, 0, 0, loc)))

	c.Advance(48 * time.Hour)
	require.Len(t, fired, 3)
	assert.True(t, fired[2].Equal(time.Date(2026, time.June, 4, 0, 0, 0, 0, loc)))

	job.Stop()
	job.Stop()

	c.Advance(72 * time.Hour)
	assert.Len(t, fired, 3, "no invocation after Stop")
	assert.Zero(t, c.Pending())
}

func TestStopWhileFiring(t *testing.T) {
	c := clock.NewFake(time.Date(2026, time.June, 1, 23, 0, 0, 0, time.UTC))

	var job *Job
	count := 0
	job = Daily(c, Midnight, time.UTC, func(time.Time) {
		count++
		job.Stop()
	})

	c.Advance(72 * time.Hour)
	assert.Equal(t, 1, count)
	assert.Zero(t, c.Pending(), "a job stopped from its callback does not re-arm")
}

func TestStartOfDay(t *testing.T) {
	loc := berlin(t)
	now := time.Date(2026, time.June, 1, 23, 30, 0, 0, time.UTC)

	assert.True(t, time.Date(2026, time.June, 2, 0, 0, 0, 0, loc).Equal(StartOfDay(now, loc)))
}

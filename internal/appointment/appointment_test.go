package appointment

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/metrics"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/storage"
)

type fixture struct {
	store    *storage.MemoryGateway
	gateway  *notify.LocalGateway
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemory()
	gateway := notify.NewLocalGateway(zap.NewNop(), nil, true)
	scheduler := notify.NewScheduler(gateway, store, zap.NewNop())
	registry := NewRegistry(store, scheduler, zap.NewNop(), time.Hour)
	return &fixture{store: store, gateway: gateway, registry: registry}
}

func futureDraft(t *testing.T, in time.Duration) Draft {
	t.Helper()
	at := time.Now().Add(in)
	return Draft{
		Title: "Dentist",
		Type:  TypeCheckup,
		Date:  at.Format("2006-01-02"),
		Time:  at.Format("15:04"),
	}
}

func TestAddArmsReminderForFutureAppointment(t *testing.T) {
	f := newFixture(t)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.NotEmpty(t, added.ReminderTriggerID)
	assert.Equal(t, 1, f.gateway.Pending())

	// The retained trigger id round-trips through persistence.
	appointments, err := f.registry.Appointments()
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, added.ReminderTriggerID, appointments[0].ReminderTriggerID)
}

func TestAddMissedReminderWindowIsSilent(t *testing.T) {
	f := newFixture(t)

	// 30 minutes out with a one-hour lead: reminder instant already passed.
	added, err := f.registry.Add(futureDraft(t, 30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, added.ReminderTriggerID)
	assert.Equal(t, 0, f.gateway.Pending())
}

func TestAddNormalizesISOInput(t *testing.T) {
	f := newFixture(t)

	at := time.Date(2030, 3, 10, 14, 30, 0, 0, time.Local)
	added, err := f.registry.Add(Draft{
		Title: "Cardiologist",
		Type:  TypeSpecialist,
		Date:  at.Format(time.RFC3339),
		Time:  at.Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "2030-03-10", added.Date)
	assert.Equal(t, "14:30", added.Time)
}

func TestAddValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		draft Draft
	}{
		{"empty title", Draft{Date: "2030-01-01", Time: "10:00"}},
		{"empty date", Draft{Title: "Dentist", Time: "10:00"}},
		{"bad date", Draft{Title: "Dentist", Date: "tomorrow", Time: "10:00"}},
		{"bad time", Draft{Title: "Dentist", Date: "2030-01-01", Time: "noon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Add(tt.draft)
			require.Error(t, err)
			assert.Equal(t, "VALID_001", errors.GetCode(err))
		})
	}
}

func TestAddDefaultsTypeToCheckup(t *testing.T) {
	f := newFixture(t)

	draft := futureDraft(t, 3*time.Hour)
	draft.Type = ""
	added, err := f.registry.Add(draft)
	require.NoError(t, err)
	assert.Equal(t, TypeCheckup, added.Type)
}

func TestUpdateMovesReminder(t *testing.T) {
	f := newFixture(t)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	oldTrigger := added.ReminderTriggerID
	require.NotEmpty(t, oldTrigger)

	moved := time.Now().Add(6 * time.Hour)
	updated, err := f.registry.Update(added.ID, Draft{
		Date: moved.Format("2006-01-02"),
		Time: moved.Format("15:04"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ReminderTriggerID)
	assert.NotEqual(t, oldTrigger, updated.ReminderTriggerID)
	assert.Equal(t, 1, f.gateway.Pending())
}

func TestUpdateSaveFailureKeepsArmedReminderReachable(t *testing.T) {
	f := newFixture(t)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, added.ReminderTriggerID)
	require.Equal(t, 1, f.gateway.Pending())

	f.store.FailWrites = true
	moved := time.Now().Add(6 * time.Hour)
	_, err = f.registry.Update(added.ID, Draft{
		Date: moved.Format("2006-01-02"),
		Time: moved.Format("15:04"),
	})
	require.Error(t, err)
	f.store.FailWrites = false

	// Nothing was rearmed: the stored record still names the armed timer.
	appointments, err := f.registry.Appointments()
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, added.ReminderTriggerID, appointments[0].ReminderTriggerID)
	require.Equal(t, 1, f.gateway.Pending())

	f.gateway.Cancel(appointments[0].ReminderTriggerID)
	assert.Equal(t, 0, f.gateway.Pending())
}

func TestUpdateUnknownIDFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Update("ghost", Draft{Title: "X"})
	require.Error(t, err)
	assert.Equal(t, "APPT_001", errors.GetCode(err))
}

func TestDeleteCancelsRetainedTrigger(t *testing.T) {
	f := newFixture(t)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, f.gateway.Pending())

	require.NoError(t, f.registry.Delete(added.ID))
	assert.Equal(t, 0, f.gateway.Pending())

	// Idempotent on a second call.
	require.NoError(t, f.registry.Delete(added.ID))

	appointments, err := f.registry.Appointments()
	require.NoError(t, err)
	assert.Empty(t, appointments)
}

func TestRearmRemindersPersistsFreshTriggerIDs(t *testing.T) {
	f := newFixture(t)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	stale := added.ReminderTriggerID
	require.NotEmpty(t, stale)

	// Timers do not survive a restart; only the persisted id remains.
	f.gateway.CancelAll()
	require.Equal(t, 0, f.gateway.Pending())

	require.NoError(t, f.registry.RearmReminders(time.Now()))
	require.Equal(t, 1, f.gateway.Pending())

	appointments, err := f.registry.Appointments()
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.NotEmpty(t, appointments[0].ReminderTriggerID)
	assert.NotEqual(t, stale, appointments[0].ReminderTriggerID)

	// The persisted id names the live timer, so delete disarms it.
	require.NoError(t, f.registry.Delete(added.ID))
	assert.Equal(t, 0, f.gateway.Pending())
}

func TestSaveTracksStoredAppointmentsGauge(t *testing.T) {
	f := newFixture(t)
	m := metrics.New(prometheus.NewRegistry())
	f.registry.WithMetrics(m)

	added, err := f.registry.Add(futureDraft(t, 3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AppointmentsStored))

	require.NoError(t, f.registry.Delete(added.ID))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AppointmentsStored))
}

func TestUpcomingOrdersAndFiltersPast(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2030, 6, 15, 12, 0, 0, 0, time.Local)

	for _, d := range []Draft{
		{Title: "Later", Date: "2030-06-20", Time: "10:00"},
		{Title: "Past", Date: "2030-06-10", Time: "10:00"},
		{Title: "Sooner", Date: "2030-06-16", Time: "09:00"},
	} {
		_, err := f.registry.Add(d)
		require.NoError(t, err)
	}

	upcoming, err := f.registry.Upcoming(now)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Sooner", upcoming[0].Title)
	assert.Equal(t, "Later", upcoming[1].Title)
}

// Package appointment owns the appointment set and its one-shot reminder
// triggers.
package appointment

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/metrics"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/storage"
)

// Appointment types.
const (
	TypeCheckup    = "checkup"
	TypeFollowup   = "followup"
	TypeSpecialist = "specialist"
	TypeEmergency  = "emergency"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Appointment is one stored appointment. Date and Time are always plain
// calendar-date and wall-clock strings regardless of what the caller passed.
// ReminderTriggerID holds the armed reminder so delete can cancel it; empty
// when no reminder was armed (missed window or scheduling failure).
type Appointment struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Doctor            string    `json:"doctor,omitempty"`
	Location          string    `json:"location,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Type              string    `json:"type"`
	Date              string    `json:"date"`
	Time              string    `json:"time"`
	ReminderTriggerID string    `json:"reminderTriggerId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Draft is the caller-supplied input to Add. Date and Time accept either the
// plain forms ("2024-03-10", "14:30") or ISO timestamps.
type Draft struct {
	Title    string `json:"title"`
	Doctor   string `json:"doctor,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Type     string `json:"type,omitempty"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// Registry owns the persisted appointment set.
type Registry struct {
	store     storage.Gateway
	scheduler *notify.Scheduler
	logger    *zap.Logger
	metrics   *metrics.Metrics
	lead      time.Duration
	now       func() time.Time

	mu sync.Mutex
}

// NewRegistry creates an appointment registry. lead is how long before the
// appointment instant the reminder fires.
func NewRegistry(store storage.Gateway, scheduler *notify.Scheduler, logger *zap.Logger, lead time.Duration) *Registry {
	return &Registry{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		lead:      lead,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// WithMetrics attaches the stored-appointments gauge.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.metrics = m
	return r
}

// Add normalizes and persists the appointment, then arms a reminder lead
// before its instant when that is still in the future. A missed reminder
// window is a silent no-op, not an error.
func (r *Registry) Add(draft Draft) (*Appointment, error) {
	if draft.Title == "" {
		return nil, errors.New("VALID_001", "appointment title is required")
	}
	date, err := normalizeDate(draft.Date)
	if err != nil {
		return nil, err
	}
	clock, err := normalizeTime(draft.Time)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	appointments, err := r.load()
	if err != nil {
		return nil, err
	}

	kind := draft.Type
	if kind == "" {
		kind = TypeCheckup
	}
	appt := Appointment{
		ID:        uuid.New().String(),
		Title:     draft.Title,
		Doctor:    draft.Doctor,
		Location:  draft.Location,
		Notes:     draft.Notes,
		Type:      kind,
		Date:      date,
		Time:      clock,
		CreatedAt: r.now(),
	}
	appointments = append(appointments, appt)

	if err := r.save(appointments); err != nil {
		return nil, err
	}

	at, _ := instant(date, clock)
	triggerID, schedErr := r.scheduler.ScheduleAppointment(appt.ID, appt.Title, appt.Location, at, r.lead)
	if schedErr != nil {
		r.logger.Warn("Appointment saved but reminder scheduling failed",
			zap.String("appointment_id", appt.ID),
			zap.Error(schedErr),
		)
		return &appt, schedErr
	}
	if triggerID != "" {
		appt.ReminderTriggerID = triggerID
		appointments[len(appointments)-1].ReminderTriggerID = triggerID
		if err := r.save(appointments); err != nil {
			return nil, err
		}
	}

	r.logger.Info("Appointment added",
		zap.String("appointment_id", appt.ID),
		zap.String("date", appt.Date),
		zap.Bool("reminder_armed", triggerID != ""),
	)

	return &appt, nil
}

// Update merges non-empty draft fields into the stored record. When the
// instant moved, the merged record is persisted first, then the old reminder
// is canceled and a new one armed, and the fresh trigger id lands in a second
// write, the same two-phase shape as Add.
func (r *Registry) Update(id string, draft Draft) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appointments, err := r.load()
	if err != nil {
		return nil, err
	}
	idx := indexOf(appointments, id)
	if idx < 0 {
		return nil, errors.New("APPT_001", fmt.Sprintf("appointment %s not found", id))
	}

	appt := &appointments[idx]
	rearm := false
	if draft.Title != "" {
		appt.Title = draft.Title
	}
	if draft.Doctor != "" {
		appt.Doctor = draft.Doctor
	}
	if draft.Location != "" {
		appt.Location = draft.Location
	}
	if draft.Notes != "" {
		appt.Notes = draft.Notes
	}
	if draft.Type != "" {
		appt.Type = draft.Type
	}
	if draft.Date != "" {
		date, err := normalizeDate(draft.Date)
		if err != nil {
			return nil, err
		}
		if date != appt.Date {
			appt.Date = date
			rearm = true
		}
	}
	if draft.Time != "" {
		clock, err := normalizeTime(draft.Time)
		if err != nil {
			return nil, err
		}
		if clock != appt.Time {
			appt.Time = clock
			rearm = true
		}
	}

	oldTrigger := appt.ReminderTriggerID
	if rearm {
		appt.ReminderTriggerID = ""
	}
	if err := r.save(appointments); err != nil {
		return nil, err
	}

	if rearm {
		if oldTrigger != "" {
			r.scheduler.Cancel(oldTrigger)
		}
		at, _ := instant(appt.Date, appt.Time)
		triggerID, schedErr := r.scheduler.ScheduleAppointment(appt.ID, appt.Title, appt.Location, at, r.lead)
		if schedErr != nil {
			r.logger.Warn("Appointment updated but reminder scheduling failed",
				zap.String("appointment_id", id),
				zap.Error(schedErr),
			)
			copied := *appt
			return &copied, schedErr
		}
		if triggerID != "" {
			appt.ReminderTriggerID = triggerID
			if err := r.save(appointments); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("Appointment updated", zap.String("appointment_id", id))

	copied := *appt
	return &copied, nil
}

// Delete removes the appointment and cancels its retained reminder trigger.
// Deleting an absent id is a silent no-op.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appointments, err := r.load()
	if err != nil {
		return err
	}
	idx := indexOf(appointments, id)
	if idx < 0 {
		return nil
	}

	triggerID := appointments[idx].ReminderTriggerID
	appointments = append(appointments[:idx], appointments[idx+1:]...)
	if err := r.save(appointments); err != nil {
		return err
	}

	if triggerID != "" {
		r.scheduler.Cancel(triggerID)
	}

	r.logger.Info("Appointment deleted", zap.String("appointment_id", id))

	return nil
}

// RearmReminders replaces the reminder trigger for every future appointment
// and persists the fresh ids, so a later delete cancels the live timer rather
// than one from a previous process. Ids whose reminder window has since
// passed are cleared. Called at startup; timers do not survive restarts.
func (r *Registry) RearmReminders(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appointments, err := r.load()
	if err != nil {
		return err
	}

	changed := false
	for i := range appointments {
		appt := &appointments[i]
		at, err := instant(appt.Date, appt.Time)
		if err != nil || !at.After(now) {
			continue
		}
		triggerID, schedErr := r.scheduler.ScheduleAppointment(appt.ID, appt.Title, appt.Location, at, r.lead)
		if schedErr != nil {
			r.logger.Warn("Failed to re-arm appointment reminder",
				zap.String("appointment_id", appt.ID),
				zap.Error(schedErr),
			)
			continue
		}
		if triggerID != appt.ReminderTriggerID {
			appt.ReminderTriggerID = triggerID
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.save(appointments)
}

// Appointments returns the persisted set.
func (r *Registry) Appointments() ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Upcoming returns future appointments ordered by instant. Records whose
// instant cannot be parsed are left out.
func (r *Registry) Upcoming(now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appointments, err := r.load()
	if err != nil {
		return nil, err
	}

	type timed struct {
		appt Appointment
		at   time.Time
	}
	var future []timed
	for _, appt := range appointments {
		at, err := instant(appt.Date, appt.Time)
		if err != nil {
			continue
		}
		if at.After(now) {
			future = append(future, timed{appt: appt, at: at})
		}
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].at.Before(future[j].at)
	})

	result := make([]Appointment, len(future))
	for i, f := range future {
		result[i] = f.appt
	}
	return result, nil
}

func (r *Registry) load() ([]Appointment, error) {
	var appointments []Appointment
	if _, err := storage.GetJSON(r.store, storage.KeyAppointments, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *Registry) save(appointments []Appointment) error {
	if err := storage.SetJSON(r.store, storage.KeyAppointments, appointments); err != nil {
		return err
	}
	r.metrics.SetAppointmentsStored(len(appointments))
	return nil
}

func indexOf(appointments []Appointment, id string) int {
	for i := range appointments {
		if appointments[i].ID == id {
			return i
		}
	}
	return -1
}

// normalizeDate accepts "2006-01-02" or an ISO timestamp and returns the
// plain calendar-date form.
func normalizeDate(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("VALID_001", "appointment date is required")
	}
	if _, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
		return raw, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Local().Format(dateLayout), nil
	}
	return "", errors.New("VALID_001", fmt.Sprintf("invalid appointment date %q", raw))
}

// normalizeTime accepts "15:04" or an ISO timestamp and returns the plain
// wall-clock form.
func normalizeTime(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("VALID_001", "appointment time is required")
	}
	if _, err := time.Parse(timeLayout, raw); err == nil {
		return raw, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Local().Format(timeLayout), nil
	}
	// Tolerate seconds in the clock form.
	if parsed, err := time.Parse("15:04:05", raw); err == nil {
		return parsed.Format(timeLayout), nil
	}
	return "", errors.New("VALID_001", fmt.Sprintf("invalid appointment time %q", raw))
}

// instant combines the stored date and time strings into an absolute local
// instant.
func instant(date, clock string) (time.Time, error) {
	combined := strings.TrimSpace(date + " " + clock)
	return time.ParseInLocation(dateLayout+" "+timeLayout, combined, time.Local)
}

package notify

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/storage"
	"github.com/gmsas95/medimate/internal/trigger"
)

// medicineTriggers is one entry in the persisted trigger-mapping document:
// which trigger ids are armed for a medicine.
type medicineTriggers struct {
	MedicineID string    `json:"medicineId"`
	TriggerIDs []string  `json:"triggerIds"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Scheduler arms reminder triggers for medicines and appointments and keeps
// the medicine-to-trigger mapping persisted, so a medicine's triggers can be
// cancelled as a unit.
type Scheduler struct {
	gateway Gateway
	store   storage.Gateway
	logger  *zap.Logger
	now     func() time.Time

	mu sync.Mutex
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(gateway Gateway, store storage.Gateway, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		gateway: gateway,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ScheduleMedicine arms one trigger per dose time and persists the mapping.
// A failure on one time slot does not stop the others; the first error is
// returned alongside the ids that were armed.
func (s *Scheduler) ScheduleMedicine(id, name, dosage string, freq trigger.Frequency, times []string, pattern *trigger.RecurringPattern) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	payload := Payload{
		Title: "Medication Reminder",
		Body:  fmt.Sprintf("Time to take %s (%s)", name, dosage),
		Data:  map[string]string{"type": "medicine", "medicineId": id, "screen": "Home"},
	}

	var (
		ids      []string
		firstErr error
	)
	for _, at := range times {
		hour, minute, err := parseClock(at)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Skipping unparsable dose time",
				zap.String("medicine_id", id),
				zap.String("time", at),
			)
			continue
		}

		spec := trigger.Build(freq, hour, minute, pattern, now)
		triggerID, err := s.gateway.Schedule(spec, payload)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Failed to schedule trigger",
				zap.String("medicine_id", id),
				zap.String("time", at),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, triggerID)
	}

	if err := s.saveMapping(id, ids); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("Medicine reminders scheduled",
		zap.String("medicine_id", id),
		zap.Int("triggers", len(ids)),
	)

	return ids, firstErr
}

// RescheduleMedicine cancels a medicine's armed triggers and schedules fresh
// ones from its current configuration.
func (s *Scheduler) RescheduleMedicine(id, name, dosage string, freq trigger.Frequency, times []string, pattern *trigger.RecurringPattern) ([]string, error) {
	if err := s.CancelMedicine(id); err != nil {
		return nil, err
	}
	return s.ScheduleMedicine(id, name, dosage, freq, times, pattern)
}

// CancelMedicine disarms every trigger recorded for the medicine and removes
// its mapping entry. Unknown medicines are a no-op.
func (s *Scheduler) CancelMedicine(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMappings()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, entry := range entries {
		if entry.MedicineID != id {
			kept = append(kept, entry)
			continue
		}
		for _, triggerID := range entry.TriggerIDs {
			s.gateway.Cancel(triggerID)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}

	return storage.SetJSON(s.store, storage.KeyNotifications, kept)
}

// ScheduleAppointment arms a one-shot reminder lead before the appointment.
// If the reminder instant has already passed, nothing is armed and an empty
// id is returned.
func (s *Scheduler) ScheduleAppointment(id, title, location string, at time.Time, lead time.Duration) (string, error) {
	remindAt := at.Add(-lead)
	if !remindAt.After(s.now()) {
		s.logger.Debug("Appointment reminder instant already passed",
			zap.String("appointment_id", id),
			zap.Time("remind_at", remindAt),
		)
		return "", nil
	}

	body := fmt.Sprintf("Upcoming appointment: %s", title)
	if location != "" {
		body = fmt.Sprintf("Upcoming appointment: %s at %s", title, location)
	}
	payload := Payload{
		Title: "Appointment Reminder",
		Body:  body,
		Data:  map[string]string{"type": "appointment", "appointmentId": id, "screen": "Appointment"},
	}

	return s.gateway.Schedule(trigger.OneShot(remindAt), payload)
}

// Cancel disarms a single trigger by id.
func (s *Scheduler) Cancel(triggerID string) {
	s.gateway.Cancel(triggerID)
}

// TriggerIDs returns the armed trigger ids recorded for a medicine.
func (s *Scheduler) TriggerIDs(medicineID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.loadMappings()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.MedicineID == medicineID {
			return entry.TriggerIDs, nil
		}
	}
	return nil, nil
}

func (s *Scheduler) loadMappings() ([]medicineTriggers, error) {
	var entries []medicineTriggers
	if _, err := storage.GetJSON(s.store, storage.KeyNotifications, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Scheduler) saveMapping(medicineID string, triggerIDs []string) error {
	entries, err := s.loadMappings()
	if err != nil {
		return err
	}

	updated := false
	for i := range entries {
		if entries[i].MedicineID == medicineID {
			entries[i].TriggerIDs = triggerIDs
			entries[i].UpdatedAt = s.now()
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, medicineTriggers{
			MedicineID: medicineID,
			TriggerIDs: triggerIDs,
			UpdatedAt:  s.now(),
		})
	}

	return storage.SetJSON(s.store, storage.KeyNotifications, entries)
}

// parseClock parses a "HH:MM" dose time.
func parseClock(at string) (hour, minute int, err error) {
	parsed, perr := time.Parse("15:04", at)
	if perr != nil {
		return 0, 0, errors.New("VALID_001", fmt.Sprintf("invalid time %q, expected HH:MM", at), perr)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

package medicine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/history"
	"github.com/gmsas95/medimate/internal/metrics"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/storage"
)

// Registry owns the persisted medicine set. Every mutation rewrites the
// whole set; side effects run persist first, then the notification gateway,
// then the history ledger, so a failed write never leaves orphaned triggers.
type Registry struct {
	store     storage.Gateway
	scheduler *notify.Scheduler
	ledger    *history.Ledger
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu sync.Mutex
}

// NewRegistry creates a medicine registry.
func NewRegistry(store storage.Gateway, scheduler *notify.Scheduler, ledger *history.Ledger, logger *zap.Logger) *Registry {
	return &Registry{
		store:     store,
		scheduler: scheduler,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// WithMetrics attaches the dose counters and the active-medicines gauge.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.metrics = m
	return r
}

// Add validates the draft, persists the new medicine, then schedules its
// reminder triggers. When persistence succeeds but scheduling fails, the
// medicine is still returned alongside the scheduling error: a saved but
// under-scheduled medicine beats losing the record.
func (r *Registry) Add(draft Draft) (*Medicine, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return nil, err
	}

	med := Medicine{
		ID:               uuid.New().String(),
		Name:             draft.Name,
		Dosage:           draft.Dosage,
		Frequency:        draft.Frequency,
		Times:            append([]string{}, draft.Times...),
		RecurringPattern: draft.RecurringPattern,
		StartDate:        draft.StartDate,
		EndDate:          draft.EndDate,
		IsActive:         true,
		Notes:            draft.Notes,
		CreatedAt:        r.now(),
	}
	medicines = append(medicines, med)

	if err := r.save(medicines); err != nil {
		return nil, err
	}

	_, schedErr := r.scheduler.ScheduleMedicine(med.ID, med.Name, med.Dosage, med.Frequency, med.Times, med.RecurringPattern)
	if schedErr != nil {
		r.logger.Warn("Medicine saved but scheduling failed",
			zap.String("medicine_id", med.ID),
			zap.Error(schedErr),
		)
	}

	r.logger.Info("Medicine added",
		zap.String("medicine_id", med.ID),
		zap.String("name", med.Name),
		zap.Int("times", len(med.Times)),
	)

	return &med, schedErr
}

// Update merges the patch into the stored record and persists. Triggers are
// fully replaced when times, frequency, or the recurring pattern changed.
func (r *Registry) Update(id string, patch Patch) (*Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return nil, err
	}

	idx := indexOf(medicines, id)
	if idx < 0 {
		return nil, errors.New("MED_001", fmt.Sprintf("medicine %s not found", id))
	}

	med := &medicines[idx]
	reschedule := applyPatch(med, patch)

	if err := r.save(medicines); err != nil {
		return nil, err
	}

	if reschedule {
		if _, err := r.scheduler.RescheduleMedicine(med.ID, med.Name, med.Dosage, med.Frequency, med.Times, med.RecurringPattern); err != nil {
			r.logger.Warn("Medicine updated but rescheduling failed",
				zap.String("medicine_id", med.ID),
				zap.Error(err),
			)
			return med, err
		}
	}

	r.logger.Info("Medicine updated", zap.String("medicine_id", med.ID))

	return med, nil
}

// Delete removes the medicine and cancels its triggers. Deleting an absent
// id is a silent no-op; history entries are never touched.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return err
	}

	idx := indexOf(medicines, id)
	if idx < 0 {
		return nil
	}

	medicines = append(medicines[:idx], medicines[idx+1:]...)
	if err := r.save(medicines); err != nil {
		return err
	}

	if err := r.scheduler.CancelMedicine(id); err != nil {
		return err
	}

	r.logger.Info("Medicine deleted", zap.String("medicine_id", id))

	return nil
}

// MarkTaken stamps lastTaken, persists the set, and appends a taken record
// to the history dated by today's local date. scheduledTime, when empty,
// defaults to the current instant.
func (r *Registry) MarkTaken(id, scheduledTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return err
	}

	idx := indexOf(medicines, id)
	if idx < 0 {
		return errors.New("MED_001", fmt.Sprintf("medicine %s not found", id))
	}

	now := r.now()
	med := &medicines[idx]
	med.LastTaken = &now

	if err := r.save(medicines); err != nil {
		return err
	}

	if scheduledTime == "" {
		scheduledTime = now.Format(time.RFC3339)
	}
	_, err = r.ledger.Append(history.Record{
		MedicineID:    med.ID,
		MedicineName:  med.Name,
		Dosage:        med.Dosage,
		Status:        history.StatusTaken,
		ScheduledTime: scheduledTime,
		TakenTime:     now.Format(time.RFC3339),
		Date:          history.DateKey(now),
	})
	if err != nil {
		return err
	}

	r.metrics.RecordDose(history.StatusTaken)

	return nil
}

// MarkSkipped appends a skipped record to the history. The medicine record
// itself is not altered.
func (r *Registry) MarkSkipped(id, scheduledTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return err
	}

	idx := indexOf(medicines, id)
	if idx < 0 {
		return errors.New("MED_001", fmt.Sprintf("medicine %s not found", id))
	}

	now := r.now()
	med := medicines[idx]
	if scheduledTime == "" {
		scheduledTime = now.Format(time.RFC3339)
	}
	_, err = r.ledger.Append(history.Record{
		MedicineID:    med.ID,
		MedicineName:  med.Name,
		Dosage:        med.Dosage,
		Status:        history.StatusSkipped,
		ScheduledTime: scheduledTime,
		Date:          history.DateKey(now),
	})
	if err != nil {
		return err
	}

	r.metrics.RecordDose(history.StatusSkipped)

	return nil
}

// Medicines returns the persisted medicine set.
func (r *Registry) Medicines() ([]Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns one medicine by id.
func (r *Registry) Get(id string) (*Medicine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	medicines, err := r.load()
	if err != nil {
		return nil, err
	}
	idx := indexOf(medicines, id)
	if idx < 0 {
		return nil, errors.New("MED_001", fmt.Sprintf("medicine %s not found", id))
	}
	med := medicines[idx]
	return &med, nil
}

func (r *Registry) load() ([]Medicine, error) {
	var medicines []Medicine
	if _, err := storage.GetJSON(r.store, storage.KeyMedicines, &medicines); err != nil {
		return nil, err
	}
	return medicines, nil
}

func (r *Registry) save(medicines []Medicine) error {
	if err := storage.SetJSON(r.store, storage.KeyMedicines, medicines); err != nil {
		return err
	}
	active := 0
	for i := range medicines {
		if medicines[i].IsActive {
			active++
		}
	}
	r.metrics.SetMedicinesActive(active)
	return nil
}

func validateDraft(draft Draft) error {
	if draft.Name == "" {
		return errors.New("VALID_001", "medicine name is required")
	}
	if draft.Dosage == "" {
		return errors.New("VALID_001", "medicine dosage is required")
	}
	if len(draft.Times) == 0 {
		return errors.New("VALID_001", "at least one dose time is required")
	}
	return nil
}

func indexOf(medicines []Medicine, id string) int {
	for i := range medicines {
		if medicines[i].ID == id {
			return i
		}
	}
	return -1
}

// applyPatch merges patch fields and reports whether the trigger-relevant
// configuration changed.
func applyPatch(med *Medicine, patch Patch) bool {
	reschedule := false

	if patch.Name != nil {
		med.Name = *patch.Name
	}
	if patch.Dosage != nil {
		med.Dosage = *patch.Dosage
	}
	if patch.Frequency != nil && *patch.Frequency != med.Frequency {
		med.Frequency = *patch.Frequency
		reschedule = true
	}
	if patch.Times != nil {
		med.Times = append([]string{}, patch.Times...)
		reschedule = true
	}
	if patch.RecurringPattern != nil {
		med.RecurringPattern = patch.RecurringPattern
		reschedule = true
	}
	if patch.StartDate != nil {
		med.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		med.EndDate = *patch.EndDate
	}
	if patch.IsActive != nil {
		med.IsActive = *patch.IsActive
	}
	if patch.Notes != nil {
		med.Notes = *patch.Notes
	}

	return reschedule
}

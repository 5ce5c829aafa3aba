// Package history keeps the date-indexed adherence ledger: which doses were
// taken or skipped on which day, with running counts per day.
package history

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/storage"
)

// Dose outcome statuses.
const (
	StatusTaken   = "taken"
	StatusSkipped = "skipped"
	StatusPending = "pending"
)

const dateLayout = "2006-01-02"

// schemaVersion is the current persisted document shape. Version 1 was a
// flat record array; version 2 buckets records by date with running counts.
const schemaVersion = 2

// Record is one dose outcome.
type Record struct {
	ID            string `json:"id"`
	MedicineID    string `json:"medicineId"`
	MedicineName  string `json:"medicineName"`
	Dosage        string `json:"dosage"`
	Status        string `json:"status"`
	ScheduledTime string `json:"scheduledTime,omitempty"`
	TakenTime     string `json:"takenTime,omitempty"`
	Date          string `json:"date"`
	Timestamp     string `json:"timestamp"`
}

// DayBucket aggregates one calendar day. Taken and Skipped always equal the
// corresponding counts over Details.
type DayBucket struct {
	Taken   int      `json:"taken"`
	Skipped int      `json:"skipped"`
	Details []Record `json:"details"`
}

// History maps "YYYY-MM-DD" date keys to their day buckets.
type History map[string]*DayBucket

// document is the persisted envelope.
type document struct {
	Version int     `json:"version"`
	Days    History `json:"days"`
}

// Stats summarizes adherence over a date range.
type Stats struct {
	Taken   int     `json:"taken"`
	Skipped int     `json:"skipped"`
	Rate    float64 `json:"rate"`
}

// Ledger owns the persisted adherence history document.
type Ledger struct {
	store  storage.Gateway
	logger *zap.Logger
	now    func() time.Time
}

// NewLedger creates a ledger over the given persistence gateway.
func NewLedger(store storage.Gateway, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Append records a dose outcome under its date bucket and persists the
// ledger. The record gets a fresh id and timestamp; an empty Date defaults
// to today. Only taken/skipped outcomes move the counters.
func (l *Ledger) Append(record Record) (History, error) {
	days, _, err := l.load()
	if err != nil {
		return nil, err
	}

	record.ID = uuid.New().String()
	record.Timestamp = l.now().Format(time.RFC3339)
	if record.Date == "" {
		record.Date = DateKey(l.now())
	}

	bucket, exists := days[record.Date]
	if !exists {
		bucket = &DayBucket{}
		days[record.Date] = bucket
	}
	bucket.Details = append(bucket.Details, record)
	switch record.Status {
	case StatusTaken:
		bucket.Taken++
	case StatusSkipped:
		bucket.Skipped++
	}

	if err := l.save(days); err != nil {
		return nil, err
	}

	l.logger.Debug("History record appended",
		zap.String("medicine_id", record.MedicineID),
		zap.String("date", record.Date),
		zap.String("status", record.Status),
	)

	return days, nil
}

// History returns the persisted ledger as-is. No back-fill happens here;
// callers wanting to-date-accurate data call FillMissing first.
func (l *Ledger) History() (History, error) {
	days, _, err := l.load()
	if err != nil {
		return nil, err
	}
	return days, nil
}

// FillMissing brings the ledger up to date relative to now:
//
//  1. Every pending record on a day before today flips to skipped, and that
//     day's counts are recomputed from its details.
//  2. Calendar days strictly between the latest recorded day and today that
//     have no bucket get an empty one, so views can tell "nothing recorded"
//     from "day not yet processed". Today itself is never back-filled.
//
// The document is written only when something changed, so calling this twice
// within the same day is a no-op the second time.
func (l *Ledger) FillMissing(now time.Time) (History, error) {
	days, migrated, err := l.load()
	if err != nil {
		return nil, err
	}

	changed := migrated
	today := DateKey(now)

	for date, bucket := range days {
		if date >= today {
			continue
		}
		flipped := false
		for i := range bucket.Details {
			if bucket.Details[i].Status == StatusPending {
				bucket.Details[i].Status = StatusSkipped
				flipped = true
			}
		}
		if flipped {
			recount(bucket)
			changed = true
		}
	}

	if last, ok := latestDate(days); ok {
		for day := last.AddDate(0, 0, 1); DateKey(day) < today; day = day.AddDate(0, 0, 1) {
			key := DateKey(day)
			if _, exists := days[key]; !exists {
				days[key] = &DayBucket{}
				changed = true
			}
		}
	}

	if !changed {
		return days, nil
	}
	if err := l.save(days); err != nil {
		return nil, err
	}

	l.logger.Info("History back-filled", zap.String("today", today))

	return days, nil
}

// StatsBetween totals taken/skipped over [from, to] inclusive and derives an
// adherence rate. Rate is 0 when the range holds no outcomes.
func (l *Ledger) StatsBetween(from, to time.Time) (Stats, error) {
	days, _, err := l.load()
	if err != nil {
		return Stats{}, err
	}

	fromKey, toKey := DateKey(from), DateKey(to)
	var stats Stats
	for date, bucket := range days {
		if date < fromKey || date > toKey {
			continue
		}
		stats.Taken += bucket.Taken
		stats.Skipped += bucket.Skipped
	}
	if total := stats.Taken + stats.Skipped; total > 0 {
		stats.Rate = float64(stats.Taken) / float64(total)
	}
	return stats, nil
}

// DateKey renders a local calendar date key from an instant, using its date
// components rather than the instant itself.
func DateKey(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).Format(dateLayout)
}

// load reads the history document, migrating legacy shapes. The second
// return reports whether a migration happened and the document should be
// rewritten on the next save opportunity.
func (l *Ledger) load() (History, bool, error) {
	raw, err := l.store.Get(storage.KeyHistory)
	if err != nil {
		return nil, false, errors.Wrap(err, "STORE_001", "failed to read history")
	}
	if raw == nil {
		return History{}, false, nil
	}

	// Version 1: a flat record array.
	var legacy []Record
	if err := json.Unmarshal(raw, &legacy); err == nil {
		days := History{}
		for _, record := range legacy {
			if record.Date == "" {
				continue
			}
			bucket, exists := days[record.Date]
			if !exists {
				bucket = &DayBucket{}
				days[record.Date] = bucket
			}
			bucket.Details = append(bucket.Details, record)
		}
		for _, bucket := range days {
			recount(bucket)
		}
		l.logger.Info("Migrated legacy history array", zap.Int("records", len(legacy)))
		return days, true, nil
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Days != nil {
		return doc.Days, false, nil
	}

	// Version absent: a bare date-keyed map.
	var bare History
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, true, nil
	}

	return nil, false, errors.New("STORE_001", "history document has an unrecognized shape")
}

func (l *Ledger) save(days History) error {
	return storage.SetJSON(l.store, storage.KeyHistory, document{Version: schemaVersion, Days: days})
}

func recount(bucket *DayBucket) {
	bucket.Taken, bucket.Skipped = 0, 0
	for _, record := range bucket.Details {
		switch record.Status {
		case StatusTaken:
			bucket.Taken++
		case StatusSkipped:
			bucket.Skipped++
		}
	}
}

func latestDate(days History) (time.Time, bool) {
	if len(days) == 0 {
		return time.Time{}, false
	}
	keys := make([]string, 0, len(days))
	for date := range days {
		keys = append(keys, date)
	}
	sort.Strings(keys)
	last, err := time.ParseInLocation(dateLayout, keys[len(keys)-1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return last, true
}

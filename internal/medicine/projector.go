package medicine

import (
	"sort"
	"time"
)

// UpcomingDose is a display projection: the next instant a dose time comes
// around. Never persisted; recomputed on every request.
type UpcomingDose struct {
	MedicineID    string    `json:"medicineId"`
	MedicineName  string    `json:"medicineName"`
	Dosage        string    `json:"dosage"`
	Time          string    `json:"time"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Notes         string    `json:"notes,omitempty"`
}

// UpcomingDoses projects the next occurrence of every active medicine's dose
// times, ordered by scheduled instant (stable on ties). A dose whose
// occurrence falls today is hidden when the medicine was already taken today
// — the tracking is per medicine, not per time slot, so one taken dose hides
// all of that medicine's remaining doses for the day. Rolled-over doses
// (tomorrow's) always show.
//
// Pure: derives everything from the inputs, independent of what is actually
// armed with the notification gateway.
func UpcomingDoses(medicines []Medicine, now time.Time) []UpcomingDose {
	var doses []UpcomingDose

	for _, med := range medicines {
		if !med.IsActive {
			continue
		}
		takenToday := med.LastTaken != nil && sameDate(*med.LastTaken, now)

		for _, at := range med.Times {
			parsed, err := time.Parse("15:04", at)
			if err != nil {
				continue
			}
			scheduled := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
			if !scheduled.After(now) {
				scheduled = scheduled.AddDate(0, 0, 1)
			}
			if takenToday && sameDate(scheduled, now) {
				continue
			}
			doses = append(doses, UpcomingDose{
				MedicineID:    med.ID,
				MedicineName:  med.Name,
				Dosage:        med.Dosage,
				Time:          at,
				ScheduledTime: scheduled,
				Notes:         med.Notes,
			})
		}
	}

	sort.SliceStable(doses, func(i, j int) bool {
		return doses[i].ScheduledTime.Before(doses[j].ScheduledTime)
	})

	return doses
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

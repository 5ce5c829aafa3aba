// Package metrics exposes Prometheus collectors for the reminder engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	DosesRecorded *prometheus.CounterVec

	TriggersScheduled prometheus.Counter
	TriggersCanceled  prometheus.Counter
	TriggersFired     prometheus.Counter

	StorageReads  prometheus.Counter
	StorageWrites prometheus.Counter

	MedicinesActive    prometheus.Gauge
	AppointmentsStored prometheus.Gauge
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics registered on the default
// Prometheus registry.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(nil)
	})
	return defaultMetrics
}

// New creates metrics registered on reg, or on the default registry when reg
// is nil. Tests pass their own registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &Metrics{
		DosesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "medimate_doses_recorded_total",
			Help: "Dose outcomes appended to the adherence history, by status.",
		}, []string{"status"}),
		TriggersScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "medimate_triggers_scheduled_total",
			Help: "Notification triggers armed.",
		}),
		TriggersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: "medimate_triggers_canceled_total",
			Help: "Notification triggers disarmed before firing.",
		}),
		TriggersFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "medimate_triggers_fired_total",
			Help: "Notification triggers delivered to the handler.",
		}),
		StorageReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "medimate_storage_reads_total",
			Help: "Document reads against the persistence gateway.",
		}),
		StorageWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "medimate_storage_writes_total",
			Help: "Document writes against the persistence gateway.",
		}),
		MedicinesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "medimate_medicines_active",
			Help: "Active medicines currently registered.",
		}),
		AppointmentsStored: factory.NewGauge(prometheus.GaugeOpts{
			Name: "medimate_appointments_stored",
			Help: "Appointments currently stored.",
		}),
	}
}

// RecordDose counts one dose outcome. Safe on a nil receiver, so components
// constructed without metrics skip recording.
func (m *Metrics) RecordDose(status string) {
	if m == nil {
		return
	}
	m.DosesRecorded.WithLabelValues(status).Inc()
}

// TriggerScheduled counts one armed trigger.
func (m *Metrics) TriggerScheduled() {
	if m == nil {
		return
	}
	m.TriggersScheduled.Inc()
}

// TriggerCanceled counts one disarmed trigger.
func (m *Metrics) TriggerCanceled() {
	if m == nil {
		return
	}
	m.TriggersCanceled.Inc()
}

// TriggerFired counts one delivered trigger.
func (m *Metrics) TriggerFired() {
	if m == nil {
		return
	}
	m.TriggersFired.Inc()
}

// StorageRead counts one document read.
func (m *Metrics) StorageRead() {
	if m == nil {
		return
	}
	m.StorageReads.Inc()
}

// StorageWrite counts one document write.
func (m *Metrics) StorageWrite() {
	if m == nil {
		return
	}
	m.StorageWrites.Inc()
}

// SetMedicinesActive tracks the active medicine count.
func (m *Metrics) SetMedicinesActive(n int) {
	if m == nil {
		return
	}
	m.MedicinesActive.Set(float64(n))
}

// SetAppointmentsStored tracks the stored appointment count.
func (m *Metrics) SetAppointmentsStored(n int) {
	if m == nil {
		return
	}
	m.AppointmentsStored.Set(float64(n))
}

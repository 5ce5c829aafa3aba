// Package medicine owns the medicine set: validation, persistence, trigger
// scheduling, and the dose-marking operations that feed the adherence
// history.
package medicine

import (
	"time"

	"github.com/gmsas95/medimate/internal/trigger"
)

// Medicine is one registered medication.
type Medicine struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Dosage           string                    `json:"dosage"`
	Frequency        trigger.Frequency         `json:"frequency"`
	Times            []string                  `json:"times"`
	RecurringPattern *trigger.RecurringPattern `json:"recurringPattern,omitempty"`
	StartDate        string                    `json:"startDate,omitempty"`
	EndDate          string                    `json:"endDate,omitempty"`
	IsActive         bool                      `json:"isActive"`
	LastTaken        *time.Time                `json:"lastTaken,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// Draft is the caller-supplied input to Add; the registry assigns identity
// and lifecycle fields.
type Draft struct {
	Name             string                    `json:"name"`
	Dosage           string                    `json:"dosage"`
	Frequency        trigger.Frequency         `json:"frequency"`
	Times            []string                  `json:"times"`
	RecurringPattern *trigger.RecurringPattern `json:"recurringPattern,omitempty"`
	StartDate        string                    `json:"startDate,omitempty"`
	EndDate          string                    `json:"endDate,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
}

// Patch carries partial updates; nil fields are left unchanged.
type Patch struct {
	Name             *string                   `json:"name,omitempty"`
	Dosage           *string                   `json:"dosage,omitempty"`
	Frequency        *trigger.Frequency        `json:"frequency,omitempty"`
	Times            []string                  `json:"times,omitempty"`
	RecurringPattern *trigger.RecurringPattern `json:"recurringPattern,omitempty"`
	StartDate        *string                   `json:"startDate,omitempty"`
	EndDate          *string                   `json:"endDate,omitempty"`
	IsActive         *bool                     `json:"isActive,omitempty"`
	Notes            *string                   `json:"notes,omitempty"`
}

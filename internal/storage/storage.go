// Package storage provides the persistence gateway: a durable mapping from
// string keys to JSON documents. Every mutation rewrites the whole document
// for its key; there are no partial updates at this layer.
package storage

import (
	"encoding/json"

	apperrors "github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/metrics"
)

// Storage keys used by the core. Each key holds one JSON document.
const (
	KeyMedicines     = "medicines"
	KeyAppointments  = "appointments"
	KeyHistory       = "medicine_history"
	KeyNotifications = "notifications"
	KeyProfile       = "profile"
	KeyDirectory     = "directory"
	KeySettings      = "settings"
)

// Gateway is the key -> JSON document store the registries and the ledger
// persist through. Get returns (nil, nil) when the key has never been written.
type Gateway interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// GetJSON reads and unmarshals the document at key into out. A missing key
// leaves out untouched and returns false.
func GetJSON(g Gateway, key string, out interface{}) (bool, error) {
	metrics.Default().StorageRead()
	raw, err := g.Get(key)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStorageRead.Code, "reading "+key)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStorageRead.Code, "decoding "+key)
	}
	return true, nil
}

// SetJSON marshals value and writes it as the whole document for key.
func SetJSON(g Gateway, key string, value interface{}) error {
	metrics.Default().StorageWrite()
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageWrite.Code, "encoding "+key)
	}
	if err := g.Set(key, raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageWrite.Code, "writing "+key)
	}
	return nil
}

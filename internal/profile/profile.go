// Package profile keeps the user's personal/medical profile, the emergency
// contact directory, and app settings.
package profile

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/storage"
)

// Profile is the user's medical profile document.
type Profile struct {
	Name           string   `json:"name,omitempty"`
	DateOfBirth    string   `json:"dateOfBirth,omitempty"`
	BloodType      string   `json:"bloodType,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
	Conditions     []string `json:"conditions,omitempty"`
	EmergencyNotes string   `json:"emergencyNotes,omitempty"`
}

// Contact is one emergency/care contact.
type Contact struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Relation string `json:"relation,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Settings holds user preferences.
type Settings struct {
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	DailySummary         bool      `json:"dailySummary"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Store persists the profile, directory, and settings documents.
type Store struct {
	store  storage.Gateway
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a profile store.
func NewStore(store storage.Gateway, logger *zap.Logger) *Store {
	return &Store{store: store, logger: logger}
}

// Profile returns the stored profile, empty when never saved.
func (s *Store) Profile() (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p Profile
	if _, err := storage.GetJSON(s.store, storage.KeyProfile, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SaveProfile replaces the stored profile.
func (s *Store) SaveProfile(p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.SetJSON(s.store, storage.KeyProfile, p); err != nil {
		return err
	}
	s.logger.Info("Profile saved")
	return nil
}

// Contacts returns the emergency contact directory.
func (s *Store) Contacts() ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadContacts()
}

// AddContact appends a contact with a fresh id.
func (s *Store) AddContact(contact Contact) (*Contact, error) {
	if contact.Name == "" {
		return nil, errors.New("VALID_001", "contact name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.loadContacts()
	if err != nil {
		return nil, err
	}
	contact.ID = uuid.New().String()
	contacts = append(contacts, contact)

	if err := storage.SetJSON(s.store, storage.KeyDirectory, contacts); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact replaces a contact's fields, keeping its id.
func (s *Store) UpdateContact(id string, contact Contact) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.loadContacts()
	if err != nil {
		return nil, err
	}
	for i := range contacts {
		if contacts[i].ID != id {
			continue
		}
		contact.ID = id
		contacts[i] = contact
		if err := storage.SetJSON(s.store, storage.KeyDirectory, contacts); err != nil {
			return nil, err
		}
		return &contact, nil
	}
	return nil, errors.New("GEN_001", fmt.Sprintf("contact %s not found", id))
}

// DeleteContact removes a contact. Absent ids are a silent no-op.
func (s *Store) DeleteContact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.loadContacts()
	if err != nil {
		return err
	}
	for i := range contacts {
		if contacts[i].ID == id {
			contacts = append(contacts[:i], contacts[i+1:]...)
			return storage.SetJSON(s.store, storage.KeyDirectory, contacts)
		}
	}
	return nil
}

// Settings returns stored preferences. Notifications default to enabled
// when nothing was saved yet.
func (s *Store) Settings() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings Settings
	found, err := storage.GetJSON(s.store, storage.KeySettings, &settings)
	if err != nil {
		return Settings{}, err
	}
	if !found {
		settings.NotificationsEnabled = true
	}
	return settings, nil
}

// SaveSettings replaces stored preferences.
func (s *Store) SaveSettings(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = time.Now()
	return storage.SetJSON(s.store, storage.KeySettings, settings)
}

// Wipe clears every persisted document and disarms every notification
// trigger. This is the "clear all data" operation; there is no undo.
func (s *Store) Wipe(gateway notify.Gateway) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := []string{
		storage.KeyMedicines,
		storage.KeyAppointments,
		storage.KeyHistory,
		storage.KeyNotifications,
		storage.KeyProfile,
		storage.KeyDirectory,
		storage.KeySettings,
	}
	for _, key := range keys {
		if err := s.store.Delete(key); err != nil {
			return errors.Wrap(err, "STORE_002", fmt.Sprintf("failed to delete %s", key))
		}
	}
	gateway.CancelAll()

	s.logger.Warn("All data wiped")
	return nil
}

func (s *Store) loadContacts() ([]Contact, error) {
	var contacts []Contact
	if _, err := storage.GetJSON(s.store, storage.KeyDirectory, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

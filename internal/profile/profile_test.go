package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/storage"
	"github.com/gmsas95/medimate/internal/trigger"
)

func testStore(t *testing.T) (*Store, *storage.MemoryGateway) {
	t.Helper()
	mem := storage.NewMemory()
	return NewStore(mem, zap.NewNop()), mem
}

func TestProfileRoundTrip(t *testing.T) {
	s, _ := testStore(t)

	empty, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, Profile{}, empty)

	p := Profile{
		Name:      "Maria",
		BloodType: "O+",
		Allergies: []string{"penicillin"},
	}
	require.NoError(t, s.SaveProfile(p))

	got, err := s.Profile()
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestContactsCRUD(t *testing.T) {
	s, _ := testStore(t)

	added, err := s.AddContact(Contact{Name: "Ana", Relation: "daughter", Phone: "555-0101"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)

	updated, err := s.UpdateContact(added.ID, Contact{Name: "Ana Maria", Phone: "555-0102"})
	require.NoError(t, err)
	assert.Equal(t, added.ID, updated.ID)
	assert.Equal(t, "Ana Maria", updated.Name)

	contacts, err := s.Contacts()
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ana Maria", contacts[0].Name)

	require.NoError(t, s.DeleteContact(added.ID))
	contacts, err = s.Contacts()
	require.NoError(t, err)
	assert.Empty(t, contacts)

	// Deleting again stays silent.
	require.NoError(t, s.DeleteContact(added.ID))
}

func TestAddContactRequiresName(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.AddContact(Contact{Phone: "555-0101"})
	require.Error(t, err)
}

func TestUpdateContactUnknownIDFails(t *testing.T) {
	s, _ := testStore(t)

	_, err := s.UpdateContact("ghost", Contact{Name: "X"})
	require.Error(t, err)
}

func TestSettingsDefaultToNotificationsEnabled(t *testing.T) {
	s, _ := testStore(t)

	settings, err := s.Settings()
	require.NoError(t, err)
	assert.True(t, settings.NotificationsEnabled)

	settings.NotificationsEnabled = false
	require.NoError(t, s.SaveSettings(settings))

	got, err := s.Settings()
	require.NoError(t, err)
	assert.False(t, got.NotificationsEnabled)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestWipeClearsDocumentsAndTriggers(t *testing.T) {
	s, mem := testStore(t)
	gateway := notify.NewLocalGateway(zap.NewNop(), nil, true)

	require.NoError(t, s.SaveProfile(Profile{Name: "Maria"}))
	require.NoError(t, mem.Set(storage.KeyMedicines, []byte(`[]`)))
	_, err := gateway.Schedule(trigger.OneShot(time.Now().Add(time.Hour)), notify.Payload{})
	require.NoError(t, err)
	require.Equal(t, 1, gateway.Pending())

	require.NoError(t, s.Wipe(gateway))

	keys, err := mem.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 0, gateway.Pending())
}

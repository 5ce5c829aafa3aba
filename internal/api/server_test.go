package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/appointment"
	"github.com/gmsas95/medimate/internal/config"
	"github.com/gmsas95/medimate/internal/history"
	"github.com/gmsas95/medimate/internal/medicine"
	"github.com/gmsas95/medimate/internal/notify"
	"github.com/gmsas95/medimate/internal/profile"
	"github.com/gmsas95/medimate/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.AllowOrigins = []string{"*"}
	cfg.Server.ReadTimeout = 5
	cfg.Server.WriteTimeout = 5

	store := storage.NewMemory()
	gateway := notify.NewLocalGateway(zap.NewNop(), nil, true)
	scheduler := notify.NewScheduler(gateway, store, zap.NewNop())
	ledger := history.NewLedger(store, zap.NewNop())
	medicines := medicine.NewRegistry(store, scheduler, ledger, zap.NewNop())
	appointments := appointment.NewRegistry(store, scheduler, zap.NewNop(), time.Hour)
	profiles := profile.NewStore(store, zap.NewNop())

	return New(cfg, medicines, appointments, ledger, profiles, gateway, zap.NewNop())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (int, []byte) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	status, body := doJSON(t, s, "GET", "/api/health", nil)
	assert.Equal(t, 200, status)
	assert.Contains(t, string(body), "healthy")
}

func TestMedicineLifecycle(t *testing.T) {
	s := testServer(t)

	status, body := doJSON(t, s, "POST", "/api/medicines", map[string]interface{}{
		"name":      "Aspirin",
		"dosage":    "100mg",
		"frequency": "daily",
		"times":     []string{"08:00"},
	})
	require.Equal(t, 201, status)

	var added medicine.Medicine
	require.NoError(t, json.Unmarshal(body, &added))
	assert.NotEmpty(t, added.ID)
	assert.True(t, added.IsActive)

	status, body = doJSON(t, s, "GET", "/api/medicines", nil)
	require.Equal(t, 200, status)
	var list []medicine.Medicine
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	status, _ = doJSON(t, s, "POST", "/api/medicines/"+added.ID+"/take", map[string]string{
		"scheduledTime": "2024-01-01T08:00:00",
	})
	assert.Equal(t, 204, status)

	status, body = doJSON(t, s, "GET", "/api/history", nil)
	require.Equal(t, 200, status)
	var days history.History
	require.NoError(t, json.Unmarshal(body, &days))
	require.Len(t, days, 1)
	for _, bucket := range days {
		assert.Equal(t, 1, bucket.Taken)
	}

	status, _ = doJSON(t, s, "DELETE", "/api/medicines/"+added.ID, nil)
	assert.Equal(t, 204, status)

	// Idempotent delete through the API as well.
	status, _ = doJSON(t, s, "DELETE", "/api/medicines/"+added.ID, nil)
	assert.Equal(t, 204, status)
}

func TestAddMedicineValidation(t *testing.T) {
	s := testServer(t)

	status, body := doJSON(t, s, "POST", "/api/medicines", map[string]interface{}{
		"dosage": "100mg",
	})
	assert.Equal(t, 400, status)
	assert.Contains(t, string(body), "name")
}

func TestUpdateMedicineNotFound(t *testing.T) {
	s := testServer(t)

	status, _ := doJSON(t, s, "PUT", "/api/medicines/ghost", map[string]interface{}{
		"notes": "x",
	})
	assert.Equal(t, 404, status)
}

func TestUpcomingDoses(t *testing.T) {
	s := testServer(t)

	status, _ := doJSON(t, s, "POST", "/api/medicines", map[string]interface{}{
		"name":      "Aspirin",
		"dosage":    "100mg",
		"frequency": "daily",
		"times":     []string{"08:00", "20:00"},
	})
	require.Equal(t, 201, status)

	status, body := doJSON(t, s, "GET", "/api/doses/upcoming", nil)
	require.Equal(t, 200, status)
	var doses []medicine.UpcomingDose
	require.NoError(t, json.Unmarshal(body, &doses))
	assert.Len(t, doses, 2)
}

func TestHistoryStats(t *testing.T) {
	s := testServer(t)

	status, body := doJSON(t, s, "GET", "/api/history/stats?days=7", nil)
	require.Equal(t, 200, status)
	var stats history.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Zero(t, stats.Taken)

	status, _ = doJSON(t, s, "GET", "/api/history/stats?days=0", nil)
	assert.Equal(t, 400, status)
}

func TestAppointmentLifecycle(t *testing.T) {
	s := testServer(t)

	at := time.Now().Add(48 * time.Hour)
	status, body := doJSON(t, s, "POST", "/api/appointments", map[string]string{
		"title": "Dentist",
		"date":  at.Format("2006-01-02"),
		"time":  at.Format("15:04"),
	})
	require.Equal(t, 201, status)
	var added appointment.Appointment
	require.NoError(t, json.Unmarshal(body, &added))
	assert.NotEmpty(t, added.ReminderTriggerID)

	status, body = doJSON(t, s, "GET", "/api/appointments/upcoming", nil)
	require.Equal(t, 200, status)
	var upcoming []appointment.Appointment
	require.NoError(t, json.Unmarshal(body, &upcoming))
	assert.Len(t, upcoming, 1)

	status, _ = doJSON(t, s, "DELETE", "/api/appointments/"+added.ID, nil)
	assert.Equal(t, 204, status)
}

func TestContactsAndProfile(t *testing.T) {
	s := testServer(t)

	status, _ := doJSON(t, s, "PUT", "/api/profile", map[string]interface{}{
		"name":      "Maria",
		"bloodType": "O+",
	})
	assert.Equal(t, 200, status)

	status, body := doJSON(t, s, "GET", "/api/profile", nil)
	require.Equal(t, 200, status)
	assert.Contains(t, string(body), "Maria")

	status, body = doJSON(t, s, "POST", "/api/contacts", map[string]string{
		"name":  "Ana",
		"phone": "555-0101",
	})
	require.Equal(t, 201, status)
	var contact profile.Contact
	require.NoError(t, json.Unmarshal(body, &contact))

	status, _ = doJSON(t, s, "DELETE", "/api/contacts/"+contact.ID, nil)
	assert.Equal(t, 204, status)
}

func TestWipeRequiresConfirmation(t *testing.T) {
	s := testServer(t)

	status, _ := doJSON(t, s, "POST", "/api/data/wipe", map[string]bool{"confirm": false})
	assert.Equal(t, 400, status)

	status, _ = doJSON(t, s, "POST", "/api/data/wipe", map[string]bool{"confirm": true})
	assert.Equal(t, 204, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)

	status, body := doJSON(t, s, "GET", "/metrics", nil)
	assert.Equal(t, 200, status)
	assert.Contains(t, string(body), "go_goroutines")
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
)

type testServer struct {
	handler http.Handler
	repo    *appointment.MemoryRepository
	doctor  appointment.User
	patient appointment.User
	other   appointment.User
	admin   appointment.User
	now     time.Time
}

func newTestServer(t *testing.T, deps ...Dependency) *testServer {
	t.Helper()

	repo := appointment.NewMemoryRepository()
	ts := &testServer{
		repo: repo,
		now:  time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
	}
	ts.doctor = repo.AddUser(appointment.User{Name: "Grey", Email: "grey@clinic.test", Role: appointment.RoleDoctor})
	ts.patient = repo.AddUser(appointment.User{Name: "Ana", Email: "ana@mail.test", Role: appointment.RolePatient})
	ts.other = repo.AddUser(appointment.User{Name: "Ben", Email: "ben@mail.test", Role: appointment.RolePatient})
	ts.admin = repo.AddUser(appointment.User{Name: "Root", Email: "root@clinic.test", Role: appointment.RoleAdmin})

	clock := func() time.Time { return ts.now }
	svc := appointment.NewService(repo, repo, appointment.Options{Logger: zerolog.Nop(), Clock: clock})

	reg := prometheus.NewRegistry()
	ts.handler = NewRouter(RouterConfig{
		Service:      svc,
		Dependencies: deps,
		Metrics:      metrics.New(reg, "test"),
		Gatherer:     reg,
		Logger:       zerolog.Nop(),
		Clock:        clock,
		Env:          "test",
		Version:      "v0",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, actor *appointment.User, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(HeaderUserID, actor.ID.String())
		req.Header.Set(HeaderUserRole, string(actor.Role))
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) book(t *testing.T, patient appointment.User, date, slot string) AppointmentResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/appointments", &patient, map[string]string{
		"doctor_id": ts.doctor.ID.String(),
		"date":      date,
		"slot":      slot,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[AppointmentResponse](t, rec)
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t)

	appt := ts.book(t, ts.patient, "2024-06-11", "09:00 AM")

	assert.Equal(t, ts.doctor.ID, appt.DoctorID)
	assert.Equal(t, ts.patient.ID, appt.PatientID)
	assert.Equal(t, "2024-06-11", appt.Date)
	assert.Equal(t, "pending", appt.Status)
}

func TestCreateAppointmentErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, ts.patient, "2024-06-11", "09:00 AM")

	tests := []struct {
		name   string
		actor  *appointment.User
		body   any
		status int
		code   string
	}{
		{"anonymous", nil, map[string]string{}, http.StatusUnauthorized, "unauthenticated"},
		{"missing fields", &ts.other, map[string]string{"slot": "09:00 AM"}, http.StatusBadRequest, "validation_failed"},
		{"bad date", &ts.other, map[string]string{"doctor_id": ts.doctor.ID.String(), "date": "tomorrow", "slot": "09:00 AM"}, http.StatusBadRequest, "invalid_date"},
		{"bad slot", &ts.other, map[string]string{"doctor_id": ts.doctor.ID.String(), "date": "2024-06-11", "slot": "07:00 PM"}, http.StatusBadRequest, "invalid_slot"},
		{"unknown doctor", &ts.other, map[string]string{"doctor_id": uuid.NewString(), "date": "2024-06-11", "slot": "09:00 AM"}, http.StatusNotFound, "doctor_not_found"},
		{"doctor cannot book", &ts.doctor, map[string]string{"doctor_id": ts.doctor.ID.String(), "date": "2024-06-11", "slot": "10:00 AM"}, http.StatusForbidden, "forbidden_role"},
		{"slot taken", &ts.other, map[string]string{"doctor_id": ts.doctor.ID.String(), "date": "2024-06-11", "slot": "09:00 AM"}, http.StatusConflict, "slot_already_booked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/appointments", tt.actor, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rec).Error)
		})
	}
}

func TestAdminBooksOnBehalfOfPatient(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/appointments", &ts.admin, map[string]string{
		"doctor_id":  ts.doctor.ID.String(),
		"patient_id": ts.other.ID.String(),
		"date":       "2024-06-12",
		"slot":       "04:00 PM",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, ts.other.ID, decodeBody[AppointmentResponse](t, rec).PatientID)
}

func TestLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	appt := ts.book(t, ts.patient, "2024-06-11", "09:00 AM")
	path := "/appointments/" + appt.ID.String()

	rec := ts.do(t, http.MethodPut, path+"/approve", &ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_appointment_doctor", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPut, path+"/approve", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", decodeBody[AppointmentResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPost, path+"/reschedule", &ts.patient, map[string]string{"date": "2024-06-13", "slot": "11:00 AM"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, "2024-06-13", moved.Date)
	assert.Equal(t, "11:00 AM", moved.Slot)
	assert.Equal(t, "approved", moved.Status)

	rec = ts.do(t, http.MethodPatch, path+"/status", &ts.doctor, map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decodeBody[AppointmentResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPatch, path+"/status", &ts.doctor, map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, path+"/cancel", &ts.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_appointment_patient", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodDelete, path, &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decodeBody[AppointmentResponse](t, rec).Status)

	rec = ts.do(t, http.MethodPut, path+"/reject", &ts.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status_transition", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPut, "/appointments/"+uuid.NewString()+"/approve", &ts.doctor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPut, "/appointments/nope/approve", &ts.doctor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeBody[ErrorResponse](t, rec).Error)
}

func TestReadEndpoints(t *testing.T) {
	ts := newTestServer(t)
	a := ts.book(t, ts.patient, "2024-06-10", "09:00 AM")
	b := ts.book(t, ts.other, "2024-06-10", "10:00 AM")
	rec := ts.do(t, http.MethodPost, "/appointments/"+b.ID.String()+"/cancel", &ts.other, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/mine", &ts.patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeBody[ListAppointmentsResponse](t, rec)
	require.Len(t, mine.Appointments, 1)
	assert.Equal(t, a.ID, mine.Appointments[0].ID)

	rec = ts.do(t, http.MethodGet, "/appointments/doctor", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListAppointmentsResponse](t, rec).Appointments, 2)

	rec = ts.do(t, http.MethodGet, "/appointments/doctor", &ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/appointments", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[ListAppointmentsResponse](t, rec).Appointments, 1)

	rec = ts.do(t, http.MethodGet, "/admin/appointments?limit=1", &ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[ListAppointmentsResponse](t, rec)
	assert.Len(t, page.Appointments, 1)
	assert.Equal(t, 1, page.Limit)

	rec = ts.do(t, http.MethodGet, "/admin/appointments?limit=x", &ts.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/appointments", &ts.patient, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/"+a.ID.String(), &ts.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/"+a.ID.String(), &ts.doctor, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSuggestionAndCalendar(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, ts.patient, "2024-06-10", "09:00 AM")
	cancelled := ts.book(t, ts.other, "2024-06-10", "10:00 AM")
	rec := ts.do(t, http.MethodDelete, "/appointments/"+cancelled.ID.String(), &ts.other, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/suggestion?days=7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decodeBody[SuggestionResponse](t, rec)
	assert.True(t, s.Found)
	assert.Equal(t, "2024-06-10", s.Date)
	assert.Equal(t, "10:00 AM", s.Slot)
	assert.Equal(t, []string{"11:00 AM", "02:00 PM", "04:00 PM"}, s.Alternatives)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/suggestion?days=500", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/calendar?days=1", &ts.doctor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cal := decodeBody[CalendarResponse](t, rec)
	assert.Equal(t, 1, cal.Days)
	entries := cal.Calendar["2024-06-10"]
	require.Len(t, entries, 2)
	assert.Equal(t, appointment.StatusCancelled, entries[1].Status)
	assert.Equal(t, "Ben", entries[1].PatientName)
}

func TestSuggestionReportsNone(t *testing.T) {
	ts := newTestServer(t)
	for _, slot := range appointment.DefaultSlotCatalog() {
		ts.book(t, ts.patient, "2024-06-10", slot)
	}

	rec := ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.ID.String()+"/suggestion?days=0", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s := decodeBody[SuggestionResponse](t, rec)
	assert.False(t, s.Found)
	assert.Equal(t, "no available slots in the next 0 days", s.Message)
}

func TestSlotsAndMalformedActor(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/slots", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string(appointment.DefaultSlotCatalog()), decodeBody[SlotsResponse](t, rec).Slots)

	req := httptest.NewRequest(http.MethodGet, "/appointments/mine", nil)
	req.Header.Set(HeaderUserID, ts.patient.ID.String())
	req.Header.Set(HeaderUserRole, "superuser")
	out := httptest.NewRecorder()
	ts.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
	assert.Equal(t, "invalid_user_role", decodeBody[ErrorResponse](t, out).Error)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t,
		Dependency{Name: "postgres", Critical: true, Ping: func(context.Context) error { return nil }},
		Dependency{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }},
	)

	rec := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[LivenessResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "down"}, ready.Dependencies)

	rec = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_request_duration_seconds")
}

func TestReadinessFailsOnCriticalDependency(t *testing.T) {
	ts := newTestServer(t,
		Dependency{Name: "postgres", Critical: true, Ping: func(context.Context) error { return errors.New("down") }},
	)

	rec := ts.do(t, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", decodeBody[ReadinessResponse](t, rec).Status)
}

func TestCalendarRequiresDoctorOrAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.book(t, ts.patient, "2024-06-10", "09:00 AM")
	path := "/doctors/" + ts.doctor.ID.String() + "/calendar?days=1"

	rec := ts.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "ana@mail.test")

	rec = ts.do(t, http.MethodGet, path, &ts.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_authorized", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, path, &ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[CalendarResponse](t, rec).Calendar["2024-06-10"]
	require.Len(t, entries, 1)
	assert.Equal(t, "ana@mail.test", entries[0].PatientEmail)
}

func TestListDoctorsIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/doctors", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doctors := decodeBody[ListDoctorsResponse](t, rec).Doctors
	require.Len(t, doctors, 1)
	assert.Equal(t, DoctorResponse{ID: ts.doctor.ID, Name: "Grey", Email: "grey@clinic.test"}, doctors[0])
}

func TestListUsersIsAdminOnly(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/users", &ts.doctor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden_role", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/admin/users?limit=2", &ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[ListUsersResponse](t, rec)
	require.Len(t, page.Users, 2)
	assert.Equal(t, ts.admin.ID, page.Users[0].ID)
	assert.Equal(t, 2, page.Limit)
}

func TestAdminCannotBookForNonPatient(t *testing.T) {
	ts := newTestServer(t)

	for _, u := range []appointment.User{ts.doctor, ts.admin} {
		rec := ts.do(t, http.MethodPost, "/appointments", &ts.admin, map[string]string{
			"doctor_id":  ts.doctor.ID.String(),
			"patient_id": u.ID.String(),
			"date":       "2024-06-12",
			"slot":       "04:00 PM",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
		assert.Equal(t, "patient_not_found", decodeBody[ErrorResponse](t, rec).Error)
	}
}

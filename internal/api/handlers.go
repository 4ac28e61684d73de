package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
)

// AppointmentService is the engine surface the HTTP layer depends on.
type AppointmentService interface {
	Catalog() appointment.SlotCatalog
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, to appointment.Status, actor appointment.Actor) (*appointment.Appointment, error)
	Approve(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	Reject(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest, actor appointment.Actor) (*appointment.Appointment, error)
	SuggestSlot(ctx context.Context, doctorID uuid.UUID, days int, now time.Time) (appointment.Suggestion, error)
	GetDoctorCalendar(ctx context.Context, doctorID uuid.UUID, days int, now time.Time, actor appointment.Actor) (appointment.Calendar, error)
	GetAppointment(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	ListPatientAppointments(ctx context.Context, actor appointment.Actor) ([]appointment.Appointment, error)
	ListDoctorAppointments(ctx context.Context, actor appointment.Actor) ([]appointment.Appointment, error)
	ListDoctorOccupancy(ctx context.Context, doctorID uuid.UUID) ([]appointment.Appointment, error)
	ListAllAppointments(ctx context.Context, actor appointment.Actor, limit, offset int) ([]appointment.Appointment, error)
	ListDoctors(ctx context.Context) ([]appointment.User, error)
	ListUsers(ctx context.Context, actor appointment.Actor, limit, offset int) ([]appointment.User, error)
}

type handlers struct {
	svc          AppointmentService
	validate     *validator.Validate
	log          zerolog.Logger
	now          func() time.Time
	suggestDays  int
	calendarDays int
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return n, true
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SlotsResponse{Slots: h.svc.Catalog()})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	patientID := actor.ID
	switch actor.Role {
	case appointment.RolePatient:
	case appointment.RoleAdmin:
		if req.PatientID == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "patient_id is required when booking as admin")
			return
		}
		patientID = uuid.MustParse(req.PatientID)
	default:
		writeServiceError(w, h.log, appointment.ErrForbiddenRole)
		return
	}

	date, err := appointment.ParseDate(req.Date)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookRequest{
		DoctorID:  uuid.MustParse(req.DoctorID),
		PatientID: patientID,
		Date:      date,
		Slot:      req.Slot,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	h.respondAppointment(w)(h.svc.SetStatus(r.Context(), id, status, actor))
}

type transitionFunc func(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)

// transition serves the body-less endpoints (approve, reject, cancel).
func (h *handlers) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		h.respondAppointment(w)(fn(r.Context(), id, actor))
	}
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := appointment.ParseDate(req.Date)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	h.respondAppointment(w)(h.svc.Reschedule(r.Context(), id, appointment.RescheduleRequest{Date: date, Slot: req.Slot}, actor))
}

func (h *handlers) respondAppointment(w http.ResponseWriter) func(*appointment.Appointment, error) {
	return func(appt *appointment.Appointment, err error) {
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func (h *handlers) listMine(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	h.respondList(w, 0, 0)(h.svc.ListPatientAppointments(r.Context(), actor))
}

func (h *handlers) listDoctorOwn(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	h.respondList(w, 0, 0)(h.svc.ListDoctorAppointments(r.Context(), actor))
}

func (h *handlers) listDoctorOccupancy(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathUUID(w, r, "doctorID")
	if !ok {
		return
	}
	h.respondList(w, 0, 0)(h.svc.ListDoctorOccupancy(r.Context(), doctorID))
}

func (h *handlers) listAll(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	h.respondList(w, limit, offset)(h.svc.ListAllAppointments(r.Context(), actor, limit, offset))
}

func (h *handlers) respondList(w http.ResponseWriter, limit, offset int) func([]appointment.Appointment, error) {
	return func(appts []appointment.Appointment, err error) {
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Appointments: toAppointmentResponses(appts),
			Limit:        limit,
			Offset:       offset,
		})
	}
}

func (h *handlers) suggest(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathUUID(w, r, "doctorID")
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", h.suggestDays)
	if !ok {
		return
	}

	s, err := h.svc.SuggestSlot(r.Context(), doctorID, days, h.now())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	resp := SuggestionResponse{
		Found:        s.Found,
		Slot:         s.Slot,
		Alternatives: s.Alternatives,
		SearchedDays: s.SearchedDays,
	}
	if s.Found {
		resp.Date = appointment.DateKey(s.Date)
	} else {
		resp.Message = fmt.Sprintf("no available slots in the next %d days", days)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) calendar(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	doctorID, ok := pathUUID(w, r, "doctorID")
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", h.calendarDays)
	if !ok {
		return
	}

	cal, err := h.svc.GetDoctorCalendar(r.Context(), doctorID, days, h.now(), actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarResponse{DoctorID: doctorID, Days: days, Calendar: cal})
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.svc.ListDoctors(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	out := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, DoctorResponse{ID: d.ID, Name: d.Name, Email: d.Email})
	}
	writeJSON(w, http.StatusOK, ListDoctorsResponse{Doctors: out})
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	users, err := h.svc.ListUsers(r.Context(), actor, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{Users: users, Limit: limit, Offset: offset})
}

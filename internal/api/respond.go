package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Specific errors are matched before their kinds.
var errorMappings = []errorMapping{
	{appointment.ErrSlotAlreadyBooked, http.StatusConflict, "slot_already_booked"},
	{appointment.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
	{appointment.ErrConflict, http.StatusConflict, "conflict"},

	{appointment.ErrNotAppointmentDoctor, http.StatusForbidden, "not_appointment_doctor"},
	{appointment.ErrNotAppointmentPatient, http.StatusForbidden, "not_appointment_patient"},
	{appointment.ErrForbiddenRole, http.StatusForbidden, "forbidden_role"},
	{appointment.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},

	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{appointment.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
	{appointment.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{appointment.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{appointment.ErrNotFound, http.StatusNotFound, "not_found"},

	{appointment.ErrInvalidSlot, http.StatusBadRequest, "invalid_slot"},
	{appointment.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{appointment.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{appointment.ErrInvalidStatusTransition, http.StatusBadRequest, "invalid_status_transition"},
	{appointment.ErrValidation, http.StatusBadRequest, "validation_failed"},
}

// writeServiceError maps engine errors to a status and a stable machine code.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}

	log.Error().Err(err).Msg("unhandled service error")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

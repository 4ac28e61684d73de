package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	PatientID string `json:"patient_id,omitempty" validate:"omitempty,uuid"` // admins only
	Date      string `json:"date" validate:"required"`
	Slot      string `json:"slot" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type RescheduleRequest struct {
	Date string `json:"date" validate:"required"`
	Slot string `json:"slot" validate:"required"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date"`
	Slot      string    `json:"slot"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		Date:      a.DateKey(),
		Slot:      a.Slot,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit,omitempty"`
	Offset       int                   `json:"offset,omitempty"`
}

type SuggestionResponse struct {
	Found        bool     `json:"found"`
	Date         string   `json:"date,omitempty"`
	Slot         string   `json:"slot,omitempty"`
	Alternatives []string `json:"alternatives"`
	SearchedDays int      `json:"searched_days"`
	Message      string   `json:"message,omitempty"`
}

type CalendarResponse struct {
	DoctorID uuid.UUID            `json:"doctor_id"`
	Days     int                  `json:"days"`
	Calendar appointment.Calendar `json:"calendar"`
}

type DoctorResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type ListDoctorsResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
}

type ListUsersResponse struct {
	Users  []appointment.User `json:"users"`
	Limit  int                `json:"limit,omitempty"`
	Offset int                `json:"offset,omitempty"`
}

type SlotsResponse struct {
	Slots []string `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

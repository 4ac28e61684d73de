package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the engine.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks. Returns ErrAppointmentNotFound when the slot is free.
	// A zero excludeID excludes nothing.
	FindActiveAppointment(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID uuid.UUID) (*Appointment, error)

	// Range reads, half-open [from, to) on the appointment date, in insertion order.
	ListDoctorAppointments(ctx context.Context, doctorID uuid.UUID, from, to time.Time, includeCancelled bool) ([]Appointment, error)
	// Closed range [from, to], used by the reminder selector.
	ListByStatusBetween(ctx context.Context, status Status, from, to time.Time) ([]Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListAppointments(ctx context.Context, limit, offset int) ([]Appointment, error)

	// Creation and updates. Writes that would leave two active appointments on the
	// same (doctor, date, slot) fail with ErrSlotAlreadyBooked.
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	UpdateAppointmentSchedule(ctx context.Context, id uuid.UUID, date time.Time, slot string) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// UserDirectory resolves the parties referenced by appointments.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	// ListUsersByRole returns every user with the role, ordered by name.
	ListUsersByRole(ctx context.Context, role Role) ([]User, error)
	// ListUsers pages through all users, newest first.
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
}

package appointment

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrConflict      = errors.New("conflict")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
)

var (
	ErrSlotAlreadyBooked = fmt.Errorf("%w: slot already has an active appointment", ErrConflict)
	ErrSlotBeingBooked   = fmt.Errorf("%w: slot is currently being booked, please retry", ErrConflict)

	ErrNotAppointmentDoctor  = fmt.Errorf("%w: only the appointment's doctor may change its status", ErrNotAuthorized)
	ErrNotAppointmentPatient = fmt.Errorf("%w: only the booking patient or an admin may modify this appointment", ErrNotAuthorized)
	ErrForbiddenRole         = fmt.Errorf("%w: role may not perform this operation", ErrNotAuthorized)

	ErrAppointmentNotFound = fmt.Errorf("%w: appointment not found", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrDoctorNotFound      = fmt.Errorf("%w: doctor not found", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("%w: patient not found", ErrNotFound)

	ErrInvalidSlot             = fmt.Errorf("%w: slot is not in the slot catalog", ErrValidation)
	ErrInvalidDate             = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidStatus           = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
)

// Outcome classifies err by kind for metrics and transport mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotAuthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

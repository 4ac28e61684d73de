package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	"github.com/hackgods/doctor-appointment-scheduling/internal/metrics"
)

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentCancelled     = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
)

// Notifier delivers best-effort messages about lifecycle transitions.
// Implementations must not block the transition on delivery failures.
type Notifier interface {
	BookingRequested(ctx context.Context, appt Appointment, patient, doctor *User)
	StatusChanged(ctx context.Context, appt Appointment, patient, doctor *User)
	Cancelled(ctx context.Context, appt Appointment, patient, doctor *User)
	Rescheduled(ctx context.Context, appt, previous Appointment, patient, doctor *User)
	Reminder(ctx context.Context, appt Appointment, patient, doctor *User)
}

type Options struct {
	Catalog  SlotCatalog
	Locker   lock.Locker
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Clock    func() time.Time
}

type Service struct {
	repo      Repository
	users     UserDirectory
	locker    lock.Locker
	notifier  Notifier
	catalog   SlotCatalog
	conflicts *ConflictChecker
	suggester *SlotSuggester
	calendar  *CalendarBuilder
	reminders *ReminderSelector
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, users UserDirectory, opts Options) *Service {
	if len(opts.Catalog) == 0 {
		opts.Catalog = DefaultSlotCatalog()
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Service{
		repo:      repo,
		users:     users,
		locker:    opts.Locker,
		notifier:  opts.Notifier,
		catalog:   opts.Catalog,
		conflicts: NewConflictChecker(repo),
		suggester: NewSlotSuggester(repo, opts.Catalog),
		calendar:  NewCalendarBuilder(repo, users),
		reminders: NewReminderSelector(repo),
		metrics:   opts.Metrics,
		log:       opts.Logger.With().Str("component", "appointment").Logger(),
		now:       opts.Clock,
	}
}

func (s *Service) Catalog() SlotCatalog { return s.catalog }

type BookRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Slot      string
}

// Book reserves (doctor, date, slot) for a patient as a pending appointment.
// The conflict check and the insert run under a per (doctor, date, slot) lock.
func (s *Service) Book(ctx context.Context, req BookRequest) (appt *Appointment, err error) {
	defer func() { s.metrics.ObserveOperation("book", Outcome(err)) }()

	date, err := s.validateSchedule(req.Date, req.Slot)
	if err != nil {
		return nil, err
	}

	doctor, err := s.users.GetUserByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != RoleDoctor {
		return nil, ErrDoctorNotFound
	}

	patient, err := s.users.GetUserByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Role != RolePatient {
		return nil, ErrPatientNotFound
	}

	var created *Appointment

	err = s.withScheduleLock(ctx, req.DoctorID, date, req.Slot, func(lockCtx context.Context) error {
		taken, err := s.conflicts.HasConflict(lockCtx, req.DoctorID, date, req.Slot, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotAlreadyBooked
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Date:      date,
			Slot:      req.Slot,
			Status:    StatusPending,
		})
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyBooked) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  appt.DoctorID.String(),
			"patient_id": appt.PatientID.String(),
			"date":       appt.DateKey(),
			"slot":       appt.Slot,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.BookingRequested(ctx, *created, patient, doctor)

	return created, nil
}

func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusApproved, actor)
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	return s.SetStatus(ctx, id, StatusRejected, actor)
}

// settableStatuses are the targets accepted by the doctor's generic status update.
var settableStatuses = map[Status]bool{
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusCompleted: true,
	StatusApproved:  true,
	StatusRejected:  true,
}

// SetStatus is the doctor's status update. Only approval and rejection notify the patient.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to Status, actor Actor) (appt *Appointment, err error) {
	defer func() { s.metrics.ObserveOperation("set_status", Outcome(err)) }()

	if !settableStatuses[to] {
		return nil, fmt.Errorf("%w: %q cannot be set", ErrInvalidStatus, to)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != current.DoctorID {
		return nil, ErrNotAppointmentDoctor
	}

	updated, err := s.transition(ctx, current, to)
	if err != nil {
		return nil, err
	}

	eventType := EventAppointmentStatusChanged
	if to == StatusCancelled {
		eventType = EventAppointmentCancelled
	}
	s.logEvent(ctx, updated.ID, eventType, map[string]any{
		"from":     current.Status,
		"to":       updated.Status,
		"actor_id": actor.ID.String(),
	})

	if to == StatusApproved || to == StatusRejected {
		patient, doctor := s.loadParties(ctx, *updated)
		s.notifier.StatusChanged(ctx, *updated, patient, doctor)
	}

	return updated, nil
}

// Cancel is available to the booking patient and to admins.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor) (appt *Appointment, err error) {
	defer func() { s.metrics.ObserveOperation("cancel", Outcome(err)) }()

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePatientOrAdmin(*current, actor); err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, current, StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"from":     current.Status,
		"actor_id": actor.ID.String(),
		"by_admin": actor.IsAdmin(),
	})

	patient, doctor := s.loadParties(ctx, *updated)
	s.notifier.Cancelled(ctx, *updated, patient, doctor)

	return updated, nil
}

type RescheduleRequest struct {
	Date time.Time
	Slot string
}

// Reschedule moves an appointment to a new (date, slot) keeping its status.
// The appointment's own booking never conflicts with its new position.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest, actor Actor) (appt *Appointment, err error) {
	defer func() { s.metrics.ObserveOperation("reschedule", Outcome(err)) }()

	date, err := s.validateSchedule(req.Date, req.Slot)
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizePatientOrAdmin(*current, actor); err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s appointment cannot be rescheduled", ErrInvalidStatusTransition, current.Status)
	}

	var updated *Appointment

	err = s.withScheduleLock(ctx, current.DoctorID, date, req.Slot, func(lockCtx context.Context) error {
		taken, err := s.conflicts.HasConflict(lockCtx, current.DoctorID, date, req.Slot, current.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotAlreadyBooked
		}

		appt, err := s.repo.UpdateAppointmentSchedule(lockCtx, current.ID, date, req.Slot)
		if err != nil {
			if errors.Is(err, ErrSlotAlreadyBooked) || errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		updated = appt
		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"old_date": current.DateKey(),
			"old_slot": current.Slot,
			"new_date": appt.DateKey(),
			"new_slot": appt.Slot,
			"actor_id": actor.ID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	patient, doctor := s.loadParties(ctx, *updated)
	s.notifier.Rescheduled(ctx, *updated, *current, patient, doctor)

	return updated, nil
}

func (s *Service) SuggestSlot(ctx context.Context, doctorID uuid.UUID, days int, now time.Time) (Suggestion, error) {
	return s.suggester.Suggest(ctx, doctorID, days, now)
}

func (s *Service) GetCalendar(ctx context.Context, doctorID uuid.UUID, days int, now time.Time) (Calendar, error) {
	return s.calendar.Build(ctx, doctorID, days, now)
}

// GetDoctorCalendar is GetCalendar for callers acting on someone's behalf.
// Entries carry patient contact details, so only the doctor and admins may read them.
func (s *Service) GetDoctorCalendar(ctx context.Context, doctorID uuid.UUID, days int, now time.Time, actor Actor) (Calendar, error) {
	if actor.ID != doctorID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return s.GetCalendar(ctx, doctorID, days, now)
}

func (s *Service) SelectReminders(ctx context.Context, now time.Time) ([]Appointment, error) {
	return s.reminders.Select(ctx, now)
}

// SendReminders selects due appointments and hands each one to the notifier once.
// Nothing is de-duplicated across runs.
func (s *Service) SendReminders(ctx context.Context, now time.Time) (int, error) {
	due, err := s.reminders.Select(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, appt := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		patient, doctor := s.loadParties(ctx, appt)
		s.notifier.Reminder(ctx, appt, patient, doctor)
		sent++
	}

	return sent, nil
}

// GetAppointment returns an appointment visible to its parties and to admins.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != appt.PatientID && actor.ID != appt.DoctorID && !actor.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return appt, nil
}

func (s *Service) ListPatientAppointments(ctx context.Context, actor Actor) ([]Appointment, error) {
	appts, err := s.repo.ListPatientAppointments(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// ListDoctorAppointments returns every booking of the calling doctor.
func (s *Service) ListDoctorAppointments(ctx context.Context, actor Actor) ([]Appointment, error) {
	if actor.Role != RoleDoctor {
		return nil, ErrForbiddenRole
	}
	appts, err := s.repo.ListDoctorAppointments(ctx, actor.ID, time.Time{}, maxDate, true)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

var maxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// ListDoctorOccupancy is the public view of a doctor's upcoming active bookings.
func (s *Service) ListDoctorOccupancy(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	from, to, err := dayWindow(s.now(), MaxWindowDays)
	if err != nil {
		return nil, err
	}
	appts, err := s.repo.ListDoctorAppointments(ctx, doctorID, from, to, false)
	if err != nil {
		return nil, fmt.Errorf("list doctor occupancy: %w", err)
	}
	return appts, nil
}

func (s *Service) ListAllAppointments(ctx context.Context, actor Actor, limit, offset int) ([]Appointment, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenRole
	}
	limit, offset = pageBounds(limit, offset)

	appts, err := s.repo.ListAppointments(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ListDoctors is the public directory patients pick a doctor from.
func (s *Service) ListDoctors(ctx context.Context) ([]User, error) {
	doctors, err := s.users.ListUsersByRole(ctx, RoleDoctor)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) ListUsers(ctx context.Context, actor Actor, limit, offset int) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenRole
	}
	limit, offset = pageBounds(limit, offset)

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Helpers

func (s *Service) validateSchedule(date time.Time, slot string) (time.Time, error) {
	if date.IsZero() {
		return time.Time{}, ErrInvalidDate
	}
	if !s.catalog.Contains(slot) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return Day(date), nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// transition applies a status change guarded on the status that was read.
func (s *Service) transition(ctx context.Context, current *Appointment, to Status) (*Appointment, error) {
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, current.ID, current.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// the row moved on between read and write
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
		}
		if errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

func authorizePatientOrAdmin(appt Appointment, actor Actor) error {
	if actor.ID == appt.PatientID || actor.IsAdmin() {
		return nil
	}
	return ErrNotAppointmentPatient
}

// lockKey names the conflict unit, so writes to different slots of the same day never contend.
func lockKey(doctorID uuid.UUID, date time.Time, slot string) string {
	return doctorID.String() + ":" + DateKey(date) + ":" + slot
}

func (s *Service) withScheduleLock(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, lockKey(doctorID, date, slot), fn)
	if errors.Is(err, lock.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

// loadParties resolves patient and doctor for messaging. Lookup failures only
// suppress the corresponding message.
func (s *Service) loadParties(ctx context.Context, appt Appointment) (patient, doctor *User) {
	return s.lookupUser(ctx, appt.PatientID), s.lookupUser(ctx, appt.DoctorID)
}

func (s *Service) lookupUser(ctx context.Context, id uuid.UUID) *User {
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", id.String()).Msg("could not load user for notification")
		return nil
	}
	return u
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

type nopNotifier struct{}

func (nopNotifier) BookingRequested(context.Context, Appointment, *User, *User)         {}
func (nopNotifier) StatusChanged(context.Context, Appointment, *User, *User)            {}
func (nopNotifier) Cancelled(context.Context, Appointment, *User, *User)                {}
func (nopNotifier) Rescheduled(context.Context, Appointment, Appointment, *User, *User) {}
func (nopNotifier) Reminder(context.Context, Appointment, *User, *User)                 {}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// ReminderHorizon is how far ahead of a run approved appointments are reminded.
	ReminderHorizon = time.Hour
	// MaxWindowDays bounds suggestion and calendar windows.
	MaxWindowDays = 90
)

// dayWindow returns the half-open range covering the calendar days [today, today+days].
func dayWindow(now time.Time, days int) (from, to time.Time, err error) {
	if days < 0 || days > MaxWindowDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: day window must be between 0 and %d", ErrValidation, MaxWindowDays)
	}
	from = Day(now)
	return from, from.AddDate(0, 0, days+1), nil
}

// ConflictChecker reports whether an active booking occupies a (doctor, date, slot).
type ConflictChecker struct {
	repo Repository
}

func NewConflictChecker(repo Repository) *ConflictChecker {
	return &ConflictChecker{repo: repo}
}

// HasConflict ignores the appointment excludeID, which lets a reschedule keep its own slot.
func (c *ConflictChecker) HasConflict(ctx context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID uuid.UUID) (bool, error) {
	_, err := c.repo.FindActiveAppointment(ctx, doctorID, Day(date), slot, excludeID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAppointmentNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check slot conflict: %w", err)
	}
}

type Suggestion struct {
	Found        bool      `json:"found"`
	Date         time.Time `json:"date,omitempty"`
	Slot         string    `json:"slot,omitempty"`
	Alternatives []string  `json:"alternatives"`
	SearchedDays int       `json:"searched_days"`
}

// SlotSuggester finds the earliest open catalog slot for a doctor.
type SlotSuggester struct {
	repo    Repository
	catalog SlotCatalog
}

func NewSlotSuggester(repo Repository, catalog SlotCatalog) *SlotSuggester {
	return &SlotSuggester{repo: repo, catalog: catalog}
}

func (s *SlotSuggester) Suggest(ctx context.Context, doctorID uuid.UUID, days int, now time.Time) (Suggestion, error) {
	from, to, err := dayWindow(now, days)
	if err != nil {
		return Suggestion{}, err
	}

	booked, err := s.repo.ListDoctorAppointments(ctx, doctorID, from, to, false)
	if err != nil {
		return Suggestion{}, fmt.Errorf("load doctor appointments: %w", err)
	}

	taken := make(map[string]struct{}, len(booked))
	for _, a := range booked {
		taken[a.DateKey()+"|"+a.Slot] = struct{}{}
	}

	today := Day(now)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			continue
		}
		key := DateKey(day)
		for _, slot := range s.catalog {
			if _, ok := taken[key+"|"+slot]; ok {
				continue
			}
			return Suggestion{
				Found:        true,
				Date:         day,
				Slot:         slot,
				Alternatives: s.catalog.Following(slot, 3),
				SearchedDays: days,
			}, nil
		}
	}

	return Suggestion{Alternatives: []string{}, SearchedDays: days}, nil
}

type CalendarEntry struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Slot          string    `json:"slot"`
	PatientName   string    `json:"patient_name"`
	PatientEmail  string    `json:"patient_email"`
	Status        Status    `json:"status"`
}

// Calendar maps an ISO date key to that day's entries in store order.
type Calendar map[string][]CalendarEntry

// CalendarBuilder projects a doctor's bookings, cancelled ones included, into a Calendar.
type CalendarBuilder struct {
	repo  Repository
	users UserDirectory
}

func NewCalendarBuilder(repo Repository, users UserDirectory) *CalendarBuilder {
	return &CalendarBuilder{repo: repo, users: users}
}

func (b *CalendarBuilder) Build(ctx context.Context, doctorID uuid.UUID, days int, now time.Time) (Calendar, error) {
	from, to, err := dayWindow(now, days)
	if err != nil {
		return nil, err
	}

	appts, err := b.repo.ListDoctorAppointments(ctx, doctorID, from, to, true)
	if err != nil {
		return nil, fmt.Errorf("load doctor appointments: %w", err)
	}

	patients := make(map[uuid.UUID]*User)
	cal := make(Calendar)
	for _, a := range appts {
		p, ok := patients[a.PatientID]
		if !ok {
			p, err = b.users.GetUserByID(ctx, a.PatientID)
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("load patient: %w", err)
			}
			patients[a.PatientID] = p
		}

		entry := CalendarEntry{
			AppointmentID: a.ID,
			Slot:          a.Slot,
			Status:        a.Status,
		}
		if p != nil {
			entry.PatientName = p.Name
			entry.PatientEmail = p.Email
		}
		key := a.DateKey()
		cal[key] = append(cal[key], entry)
	}

	return cal, nil
}

// ReminderSelector picks the approved appointments due within ReminderHorizon.
// Confirmed appointments are not reminded.
type ReminderSelector struct {
	repo Repository
}

func NewReminderSelector(repo Repository) *ReminderSelector {
	return &ReminderSelector{repo: repo}
}

func (r *ReminderSelector) Select(ctx context.Context, now time.Time) ([]Appointment, error) {
	appts, err := r.repo.ListByStatusBetween(ctx, StatusApproved, now, now.Add(ReminderHorizon))
	if err != nil {
		return nil, fmt.Errorf("select reminders: %w", err)
	}
	return appts, nil
}

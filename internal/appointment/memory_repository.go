package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process implementation of Repository and UserDirectory.
// It enforces the one-active-appointment-per-slot rule atomically, like the
// partial unique index of the Postgres schema.
type MemoryRepository struct {
	mu           sync.RWMutex
	now          func() time.Time
	users        map[uuid.UUID]User
	userOrder    []uuid.UUID
	appointments map[uuid.UUID]*Appointment
	order        []uuid.UUID // insertion order
	events       []EventLog
	seq          int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:          time.Now,
		users:        make(map[uuid.UUID]User),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

// AddUser registers a user for test setup and standalone runs.
func (m *MemoryRepository) AddUser(u User) User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := m.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, exists := m.users[u.ID]; !exists {
		m.userOrder = append(m.userOrder, u.ID)
	}
	m.users[u.ID] = u
	return u
}

func (m *MemoryRepository) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryRepository) ListUsersByRole(_ context.Context, role Role) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []User{}
	for _, id := range m.userOrder {
		if u := m.users[id]; u.Role == role {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListUsers returns users newest first; a non-positive limit returns them all.
func (m *MemoryRepository) ListUsers(_ context.Context, limit, offset int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.userOrder))
	for i := len(m.userOrder) - 1; i >= 0; i-- {
		out = append(out, m.users[m.userOrder[i]])
	}
	if offset >= len(out) {
		return []User{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) FindActiveAppointment(_ context.Context, doctorID uuid.UUID, date time.Time, slot string, excludeID uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a := m.findActiveLocked(doctorID, date, slot, excludeID); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *MemoryRepository) findActiveLocked(doctorID uuid.UUID, date time.Time, slot string, excludeID uuid.UUID) *Appointment {
	for _, id := range m.order {
		a := m.appointments[id]
		if a.ID == excludeID || !a.Status.IsActive() {
			continue
		}
		if a.DoctorID == doctorID && a.Slot == slot && a.Date.Equal(date) {
			return a
		}
	}
	return nil
}

func (m *MemoryRepository) ListDoctorAppointments(_ context.Context, doctorID uuid.UUID, from, to time.Time, includeCancelled bool) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		if a.DoctorID != doctorID {
			return false
		}
		if !includeCancelled && !a.Status.IsActive() {
			return false
		}
		return !a.Date.Before(from) && a.Date.Before(to)
	}), nil
}

func (m *MemoryRepository) ListByStatusBetween(_ context.Context, status Status, from, to time.Time) ([]Appointment, error) {
	out := m.filter(func(a *Appointment) bool {
		return a.Status == status && !a.Date.Before(from) && !a.Date.After(to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MemoryRepository) ListPatientAppointments(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	out := m.filter(func(a *Appointment) bool { return a.PatientID == patientID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *MemoryRepository) ListAppointments(_ context.Context, limit, offset int) ([]Appointment, error) {
	all := m.filter(func(*Appointment) bool { return true })
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if offset >= len(all) {
		return []Appointment{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemoryRepository) filter(keep func(*Appointment) bool) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Appointment{}
	for _, id := range m.order {
		if a := m.appointments[id]; keep(a) {
			out = append(out, *a)
		}
	}
	return out
}

func (m *MemoryRepository) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.Status.IsActive() && m.findActiveLocked(a.DoctorID, a.Date, a.Slot, uuid.Nil) != nil {
		return nil, ErrSlotAlreadyBooked
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := m.now()
	a.CreatedAt = now
	a.UpdatedAt = now

	stored := a
	m.appointments[a.ID] = &stored
	m.order = append(m.order, a.ID)
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	if to.IsActive() && !from.IsActive() && m.findActiveLocked(a.DoctorID, a.Date, a.Slot, a.ID) != nil {
		return nil, ErrSlotAlreadyBooked
	}
	a.Status = to
	a.UpdatedAt = m.now()
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) UpdateAppointmentSchedule(_ context.Context, id uuid.UUID, date time.Time, slot string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status.IsActive() && m.findActiveLocked(a.DoctorID, date, slot, a.ID) != nil {
		return nil, ErrSlotAlreadyBooked
	}
	a.Date = date
	a.Slot = slot
	a.UpdatedAt = m.now()
	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	ev.ID = m.seq
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

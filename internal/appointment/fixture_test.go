package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type notification struct {
	kind     string
	appt     Appointment
	previous Appointment
	patient  *User
	doctor   *User
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (r *recordingNotifier) add(n notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
}

func (r *recordingNotifier) BookingRequested(_ context.Context, appt Appointment, patient, doctor *User) {
	r.add(notification{kind: "booking", appt: appt, patient: patient, doctor: doctor})
}

func (r *recordingNotifier) StatusChanged(_ context.Context, appt Appointment, patient, doctor *User) {
	r.add(notification{kind: "status", appt: appt, patient: patient, doctor: doctor})
}

func (r *recordingNotifier) Cancelled(_ context.Context, appt Appointment, patient, doctor *User) {
	r.add(notification{kind: "cancelled", appt: appt, patient: patient, doctor: doctor})
}

func (r *recordingNotifier) Rescheduled(_ context.Context, appt, previous Appointment, patient, doctor *User) {
	r.add(notification{kind: "rescheduled", appt: appt, previous: previous, patient: patient, doctor: doctor})
}

func (r *recordingNotifier) Reminder(_ context.Context, appt Appointment, patient, doctor *User) {
	r.add(notification{kind: "reminder", appt: appt, patient: patient, doctor: doctor})
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.kind)
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type fixture struct {
	repo     *MemoryRepository
	svc      *Service
	notifier *recordingNotifier
	doctor   User
	patient  User
	other    User
	admin    User
	now      time.Time
}

func phone(s string) *string { return &s }

// newFixture builds a service over a memory store with one doctor, two patients and an admin.
// The clock is pinned to 2024-06-10T00:00:00Z.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := NewMemoryRepository()
	f := &fixture{
		repo:     repo,
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	f.doctor = repo.AddUser(User{Name: "Grey", Email: "grey@clinic.test", Phone: phone("+15550100"), Role: RoleDoctor})
	f.patient = repo.AddUser(User{Name: "Ana", Email: "ana@mail.test", Phone: phone("+15550200"), Role: RolePatient})
	f.other = repo.AddUser(User{Name: "Ben", Email: "ben@mail.test", Role: RolePatient})
	f.admin = repo.AddUser(User{Name: "Root", Email: "root@clinic.test", Role: RoleAdmin})

	f.svc = NewService(repo, repo, Options{
		Notifier: f.notifier,
		Logger:   zerolog.Nop(),
		Clock:    func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) actor(u User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) day(offset int) time.Time {
	return Day(f.now).AddDate(0, 0, offset)
}

func (f *fixture) book(t *testing.T, patient User, date time.Time, slot string) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), BookRequest{
		DoctorID:  f.doctor.ID,
		PatientID: patient.ID,
		Date:      date,
		Slot:      slot,
	})
	if err != nil {
		t.Fatalf("book %s %s: %v", DateKey(date), slot, err)
	}
	return appt
}

// seed inserts an appointment directly, bypassing the lifecycle.
func (f *fixture) seed(t *testing.T, date time.Time, slot string, status Status) *Appointment {
	t.Helper()
	appt, err := f.repo.CreateAppointment(context.Background(), Appointment{
		DoctorID:  f.doctor.ID,
		PatientID: f.patient.ID,
		Date:      date,
		Slot:      slot,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return appt
}

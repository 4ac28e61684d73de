package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryEnforcesActiveSlotUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	doctor := uuid.New()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	first, err := repo.CreateAppointment(ctx, Appointment{DoctorID: doctor, PatientID: uuid.New(), Date: day, Slot: "09:00 AM", Status: StatusPending})
	require.NoError(t, err)

	_, err = repo.CreateAppointment(ctx, Appointment{DoctorID: doctor, PatientID: uuid.New(), Date: day, Slot: "09:00 AM", Status: StatusPending})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	second, err := repo.CreateAppointment(ctx, Appointment{DoctorID: doctor, PatientID: uuid.New(), Date: day, Slot: "10:00 AM", Status: StatusPending})
	require.NoError(t, err)

	_, err = repo.UpdateAppointmentSchedule(ctx, second.ID, day, "09:00 AM")
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	_, err = repo.UpdateAppointmentStatus(ctx, first.ID, StatusPending, StatusCancelled)
	require.NoError(t, err)

	moved, err := repo.UpdateAppointmentSchedule(ctx, second.ID, day, "09:00 AM")
	require.NoError(t, err)
	assert.Equal(t, "09:00 AM", moved.Slot)
}

func TestMemoryRepositoryConditionalStatusUpdate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.CreateAppointment(ctx, Appointment{DoctorID: uuid.New(), PatientID: uuid.New(), Date: time.Now(), Slot: "09:00 AM", Status: StatusPending})
	require.NoError(t, err)

	_, err = repo.UpdateAppointmentStatus(ctx, a.ID, StatusApproved, StatusCompleted)
	assert.ErrorIs(t, err, ErrAppointmentNotFound, "stale expected status must not update")

	updated, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusPending, StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a, err := repo.CreateAppointment(ctx, Appointment{DoctorID: uuid.New(), PatientID: uuid.New(), Date: time.Now(), Slot: "09:00 AM", Status: StatusPending})
	require.NoError(t, err)

	got, err := repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	got.Slot = "mutated"

	again, err := repo.GetAppointmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "09:00 AM", again.Slot)
}

func TestMemoryRepositoryPagination(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	doctor := uuid.New()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for _, slot := range DefaultSlotCatalog() {
		a, err := repo.CreateAppointment(ctx, Appointment{DoctorID: doctor, PatientID: uuid.New(), Date: day, Slot: slot, Status: StatusPending})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	page, err := repo.ListAppointments(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[3], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	empty, err := repo.ListAppointments(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryRepositoryListsUsers(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	b := repo.AddUser(User{Name: "Bailey", Role: RoleDoctor})
	a := repo.AddUser(User{Name: "Avery", Role: RoleDoctor})
	p := repo.AddUser(User{Name: "Pat", Role: RolePatient})

	// re-registering a user updates it in place
	b.Email = "bailey@clinic.test"
	repo.AddUser(b)

	doctors, err := repo.ListUsersByRole(ctx, RoleDoctor)
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	assert.Equal(t, a.ID, doctors[0].ID)
	assert.Equal(t, "bailey@clinic.test", doctors[1].Email)

	all, err := repo.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{p.ID, a.ID, b.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	rest, err := repo.ListUsers(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

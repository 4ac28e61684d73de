package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/doctor-appointment-scheduling/internal/redis"
)

func TestHeldSlotDoesNotBlockOtherSlotsThatDay(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := redisclient.NewRedisLocker(client, 5*time.Second)
	svc := NewService(f.repo, f.repo, Options{
		Locker: locker,
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return f.now },
	})

	err := locker.WithLock(context.Background(), lockKey(f.doctor.ID, f.day(0), "09:00 AM"), func(ctx context.Context) error {
		appt, err := svc.Book(ctx, BookRequest{DoctorID: f.doctor.ID, PatientID: f.patient.ID, Date: f.day(0), Slot: "04:00 PM"})
		require.NoError(t, err)
		assert.Equal(t, "04:00 PM", appt.Slot)

		other := f.book(t, f.other, f.day(1), "09:00 AM")
		moved, err := svc.Reschedule(ctx, other.ID, RescheduleRequest{Date: f.day(0), Slot: "11:00 AM"}, f.actor(f.other))
		require.NoError(t, err)
		assert.Equal(t, "11:00 AM", moved.Slot)

		_, err = svc.Book(ctx, BookRequest{DoctorID: f.doctor.ID, PatientID: f.other.ID, Date: f.day(0), Slot: "09:00 AM"})
		assert.ErrorIs(t, err, ErrSlotBeingBooked)
		return nil
	})
	require.NoError(t, err)
}

func TestLockKeyCoversTheWholeSlot(t *testing.T) {
	f := newFixture(t)

	morning := lockKey(f.doctor.ID, f.day(0), "09:00 AM")
	assert.Equal(t, f.doctor.ID.String()+":2024-06-10:09:00 AM", morning)
	assert.NotEqual(t, morning, lockKey(f.doctor.ID, f.day(0), "04:00 PM"))
	assert.Equal(t, morning, lockKey(f.doctor.ID, f.day(0).Add(13*time.Hour), "09:00 AM"))
}

package main

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-scheduling/internal/app"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
)

func TestWorkerRunsAgainstMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("LOCK_BACKEND", "local")

	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	sent, err := newWorker(a, zerolog.Nop()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.ReminderRuns.WithLabelValues("ok")))
}

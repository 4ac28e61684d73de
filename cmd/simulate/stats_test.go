package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperationMetricsStats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 100; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%2 == 0, i%3 == 0)
	}

	avg, min, max, p50, p95 := om.Stats()

	assert.Equal(t, int64(100), om.Total)
	assert.Equal(t, int64(50), om.Success)
	assert.Equal(t, int64(17), om.Conflict) // odd multiples of three
	assert.Equal(t, int64(33), om.Error)
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, 100*time.Millisecond, max)
	assert.Equal(t, 51*time.Millisecond, p50)
	assert.Equal(t, 96*time.Millisecond, p95)
	assert.Equal(t, 50500*time.Microsecond, avg)
}

func TestEmptyStats(t *testing.T) {
	var om OperationMetrics
	avg, min, max, p50, p95 := om.Stats()
	assert.Zero(t, avg+min+max+p50+p95)
}

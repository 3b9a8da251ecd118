package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManualClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManualClock(start)
	require.Equal(t, start, c.Now())

	c.Advance(61 * time.Second)
	require.Equal(t, start.Add(61*time.Second), c.Now())

	later := start.Add(time.Hour)
	c.Set(later)
	require.Equal(t, later, c.Now())
}

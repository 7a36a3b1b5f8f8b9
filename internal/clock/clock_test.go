package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	assert.Equal(t, 90*time.Second, c.Since(start))

	later := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestRealClockAdvances(t *testing.T) {
	c := &RealClock{}
	t1 := c.Now()
	t2 := c.Now()
	assert.False(t, t2.Before(t1))
}

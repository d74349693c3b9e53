package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualFiresInTimeOrder(t *testing.T) {
	m := NewManual(start)
	var fired []string
	m.AfterFunc(30*time.Millisecond, func() { fired = append(fired, "c") })
	m.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	m.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "b") })

	m.Advance(9 * time.Millisecond)
	assert.Empty(t, fired)

	m.Advance(21 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, start.Add(30*time.Millisecond), m.Now())
}

func TestManualCallbackSeesItsOwnInstant(t *testing.T) {
	m := NewManual(start)
	var seen time.Time
	m.AfterFunc(5*time.Millisecond, func() { seen = m.Now() })
	m.Advance(time.Second)
	assert.Equal(t, start.Add(5*time.Millisecond), seen)
	assert.Equal(t, start.Add(time.Second), m.Now())
}

func TestManualStop(t *testing.T) {
	m := NewManual(start)
	fired := false
	timer := m.AfterFunc(time.Millisecond, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	m.Advance(time.Second)
	assert.False(t, fired)
	assert.Zero(t, m.Pending())
}

func TestManualTimersScheduledFromCallbacks(t *testing.T) {
	m := NewManual(start)
	count := 0
	m.AfterFunc(10*time.Millisecond, func() {
		count++
		m.AfterFunc(10*time.Millisecond, func() { count++ })
	})
	m.Advance(25 * time.Millisecond)
	assert.Equal(t, 2, count)
}

func TestMilliseconds(t *testing.T) {
	assert.Equal(t, 250.0, Milliseconds(250*time.Millisecond))
	assert.Equal(t, 0.5, Milliseconds(500*time.Microsecond))
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemIsMonotonic(t *testing.T) {
	c := System()
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
}

func TestFake(t *testing.T) {
	start := time.Unix(1000, 0)
	f := NewFake(start)
	assert.Equal(t, start, f.Now())

	f.Advance(5 * time.Millisecond)
	assert.Equal(t, start.Add(5*time.Millisecond), f.Now())

	f.Advance(-time.Second)
	assert.Equal(t, start.Add(5*time.Millisecond), f.Now())

	f.Set(start)
	assert.Equal(t, start.Add(5*time.Millisecond), f.Now(), "Set never moves backwards")

	f.Set(start.Add(time.Second))
	assert.Equal(t, start.Add(time.Second), f.Now())
}

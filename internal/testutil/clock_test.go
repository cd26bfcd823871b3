package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	c := NewClock(start)

	assert.True(t, c.Now().Equal(start))
	assert.True(t, c.Now().Equal(start), "frozen clock must not tick")

	c.Advance(90 * time.Minute)
	assert.True(t, c.Now().Equal(start.Add(90*time.Minute)))

	jump := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	c.Set(jump)
	assert.True(t, c.Now().Equal(jump))
}

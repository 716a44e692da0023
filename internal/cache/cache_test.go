package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_TTL(t *testing.T) {
	c := New(true)
	defer c.Close()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("team:1", "tok", time.Minute)
	v, exp, ok := c.Get("team:1")
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
	assert.Equal(t, now.Add(time.Minute), exp)

	now = now.Add(2 * time.Minute)
	_, _, ok = c.Get("team:1")
	assert.False(t, ok)

	c.evict()
	assert.Equal(t, 0, c.Stats()["total_keys"])
}

func TestMemory_DeleteAndNonPositiveTTL(t *testing.T) {
	c := New(true)
	defer c.Close()

	c.Set("a", "1", time.Hour)
	c.Delete("a")
	_, _, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("b", "2", time.Hour)
	c.Set("b", "3", 0)
	_, _, ok = c.Get("b")
	assert.False(t, ok)
}

func TestMemory_Disabled(t *testing.T) {
	c := New(false)
	c.Set("a", "1", time.Hour)
	_, _, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, false, c.Stats()["enabled"])
}

package services

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/probe"
)

// TestCooldown_Window tests reuse inside the window and expiry after it.
func TestCooldown_Window(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Minute, zerolog.Nop())
	c.now = func() time.Time { return now }

	_, ok := c.Lookup("https://example.com")
	assert.False(t, ok)

	outcome := probe.Outcome{Status: constants.StatusGood, Latency: 120 * time.Millisecond}
	c.Record("https://example.com", outcome)

	now = now.Add(59 * time.Second)
	got, ok := c.Lookup("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, outcome, got)

	now = now.Add(time.Second)
	_, ok = c.Lookup("https://example.com")
	assert.False(t, ok)
}

// TestCooldown_Prune tests that only expired entries are removed.
func TestCooldown_Prune(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewCooldown(time.Minute, zerolog.Nop())
	c.now = func() time.Time { return now }

	c.Record("https://old.example.com", probe.Outcome{Status: constants.StatusBad})
	now = now.Add(45 * time.Second)
	c.Record("https://new.example.com", probe.Outcome{Status: constants.StatusGood})
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("https://new.example.com")
	assert.True(t, ok)
}

// TestCooldown_StartStop tests the janitor lifecycle.
func TestCooldown_StartStop(t *testing.T) {
	c := NewCooldown(time.Minute, zerolog.Nop())
	assert.Error(t, c.Stop())
	assert.NoError(t, c.Start())
	assert.Error(t, c.Start())
	assert.NoError(t, c.Stop())
}

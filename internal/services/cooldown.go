package services

import (
	"context"
	"errors"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/probe"
)

type cooldownEntry struct {
	checkedAt time.Time
	outcome   probe.Outcome
}

// Cooldown remembers the last probe of each URL so repeated requests
// inside the window reuse the previous outcome. Start runs a janitor
// that drops expired entries.
type Cooldown struct {
	window  time.Duration
	entries cmap.ConcurrentMap[string, cooldownEntry]
	now     func() time.Time
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCooldown creates an empty cool-down cache.
func NewCooldown(window time.Duration, logger zerolog.Logger) *Cooldown {
	return &Cooldown{
		window:  window,
		entries: cmap.New[cooldownEntry](),
		now:     time.Now,
		logger:  logger,
	}
}

// Lookup returns the cached outcome for url if it was probed within the window.
func (c *Cooldown) Lookup(url string) (probe.Outcome, bool) {
	e, ok := c.entries.Get(url)
	if !ok || c.now().Sub(e.checkedAt) >= c.window {
		return probe.Outcome{}, false
	}
	return e.outcome, true
}

// Record stores outcome as the latest probe of url.
func (c *Cooldown) Record(url string, outcome probe.Outcome) {
	c.entries.Set(url, cooldownEntry{checkedAt: c.now(), outcome: outcome})
}

// Prune removes expired entries and returns how many were dropped.
func (c *Cooldown) Prune() int {
	now := c.now()
	removed := 0
	for _, url := range c.entries.Keys() {
		expired := c.entries.RemoveCb(url, func(_ string, e cooldownEntry, exists bool) bool {
			return exists && now.Sub(e.checkedAt) >= c.window
		})
		if expired {
			removed++
		}
	}
	return removed
}

// Len returns the number of cached URLs.
func (c *Cooldown) Len() int {
	return c.entries.Count()
}

// Start launches the janitor.
func (c *Cooldown) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		return errors.New("cooldown janitor is already running")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	ctx := c.ctx

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.window)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.Prune(); n > 0 {
					c.logger.Debug().Int("removed", n).Msg("Pruned cool-down entries")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop halts the janitor.
func (c *Cooldown) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return errors.New("cooldown janitor is not running")
	}
	c.cancel()
	c.wg.Wait()
	c.ctx = nil
	c.cancel = nil
	return nil
}

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s Store) (*models.Validator, *models.Target) {
	t.Helper()
	ctx := context.Background()

	v := &models.Validator{PublicKey: "pk-1", Address: "10.0.0.1", Status: constants.ValidatorOnline, LastSeen: time.Now()}
	require.NoError(t, s.CreateValidator(ctx, v))

	target := &models.Target{URL: "https://example.com", AccountID: "acct-1"}
	require.NoError(t, s.CreateTarget(ctx, target))
	return v, target
}

// TestMemoryStore_TargetLifecycle tests creation, duplicate rejection and soft delete.
func TestMemoryStore_TargetLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v, target := seed(t, s)
	assert.NotEmpty(t, target.ID)

	err := s.CreateTarget(ctx, &models.Target{URL: "https://example.com", AccountID: "acct-2"})
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.AppendTick(ctx, &models.Tick{TargetID: target.ID, ValidatorID: v.ID, Status: constants.StatusGood, Latency: 0.1}))
	require.NoError(t, s.DisableTarget(ctx, target.ID))

	listed, err := s.ListTargets(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, listed)

	got, err := s.GetTarget(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	ticks, err := s.RecentTicks(ctx, target.ID, 0)
	require.NoError(t, err)
	assert.Len(t, ticks, 1)

	assert.ErrorIs(t, s.DisableTarget(ctx, "missing"), ErrNotFound)
}

// TestMemoryStore_TickOrdering tests newest first reads with insertion order breaking ties.
func TestMemoryStore_TickOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v, target := seed(t, s)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := []time.Time{base, base.Add(time.Minute), base, base.Add(-time.Minute)}
	for _, ts := range at {
		require.NoError(t, s.AppendTick(ctx, &models.Tick{
			TargetID: target.ID, ValidatorID: v.ID, Status: constants.StatusGood, CreatedAt: ts,
		}))
	}

	ticks, err := s.RecentTicks(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, ticks, 4)

	assert.Equal(t, base.Add(time.Minute), ticks[0].CreatedAt)
	assert.Equal(t, base, ticks[1].CreatedAt)
	assert.Equal(t, base, ticks[2].CreatedAt)
	assert.Greater(t, ticks[1].ID, ticks[2].ID)
	assert.Equal(t, base.Add(-time.Minute), ticks[3].CreatedAt)

	limited, err := s.RecentTicks(ctx, target.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	since, err := s.TicksSince(ctx, target.ID, base)
	require.NoError(t, err)
	assert.Len(t, since, 1)
}

// TestMemoryStore_AppendTickValidation tests the tick invariants.
func TestMemoryStore_AppendTickValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v, target := seed(t, s)

	err := s.AppendTick(ctx, &models.Tick{TargetID: target.ID, ValidatorID: v.ID, Status: constants.StatusGood, Latency: -1})
	assert.ErrorIs(t, err, ErrInvalidTick)

	err = s.AppendTick(ctx, &models.Tick{TargetID: target.ID, ValidatorID: v.ID, Status: "meh"})
	assert.ErrorIs(t, err, ErrInvalidTick)

	err = s.AppendTick(ctx, &models.Tick{TargetID: target.ID, ValidatorID: "ghost", Status: constants.StatusBad})
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.AppendTick(ctx, &models.Tick{TargetID: "ghost", ValidatorID: v.ID, Status: constants.StatusBad})
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMemoryStore_ConcurrentAppends tests that appends across targets keep unique ids.
func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v, first := seed(t, s)
	second := &models.Target{URL: "https://example.org", AccountID: "acct-1"}
	require.NoError(t, s.CreateTarget(ctx, second))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, id := range []string{first.ID, second.ID} {
			wg.Add(1)
			go func(targetID string) {
				defer wg.Done()
				assert.NoError(t, s.AppendTick(ctx, &models.Tick{TargetID: targetID, ValidatorID: v.ID, Status: constants.StatusGood}))
			}(id)
		}
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, id := range []string{first.ID, second.ID} {
		ticks, err := s.RecentTicks(ctx, id, 0)
		require.NoError(t, err)
		assert.Len(t, ticks, 50)
		for _, tk := range ticks {
			assert.False(t, seen[tk.ID])
			seen[tk.ID] = true
		}
	}
}

// TestMemoryStore_Validators tests lookup, liveness and counters.
func TestMemoryStore_Validators(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v, _ := seed(t, s)

	assert.ErrorIs(t, s.CreateValidator(ctx, &models.Validator{PublicKey: "pk-1"}), ErrConflict)

	byKey, err := s.FindValidatorByPublicKey(ctx, "pk-1")
	require.NoError(t, err)
	assert.Equal(t, v.ID, byKey.ID)

	found, err := s.FindOnlineValidator(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, v.ID, found.ID)

	_, err = s.FindOnlineValidator(ctx, "10.9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now()
	require.NoError(t, s.RecordValidation(ctx, v.ID, now))
	require.NoError(t, s.RecordValidation(ctx, v.ID, now))
	got, err := s.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TotalValidations)

	require.NoError(t, s.MarkValidatorOffline(ctx, v.ID, now))
	_, err = s.FindOnlineValidator(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.MarkValidatorOnline(ctx, v.ID, "10.0.0.2", now))
	got, err = s.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", got.Address)
	assert.True(t, got.Online())
}

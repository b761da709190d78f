package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPostgresStore runs the store contract against a live database when
// TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	suffix := time.Now().UnixNano()

	v := &models.Validator{
		PublicKey:    fmt.Sprintf("pk-%d", suffix),
		Address:      "10.0.0.1",
		Status:       constants.ValidatorOnline,
		Capabilities: []string{"http", "https"},
	}
	require.NoError(t, s.CreateValidator(ctx, v))
	assert.ErrorIs(t, s.CreateValidator(ctx, &models.Validator{PublicKey: v.PublicKey}), ErrConflict)

	target := &models.Target{URL: fmt.Sprintf("https://example.com/%d", suffix), AccountID: "acct"}
	require.NoError(t, s.CreateTarget(ctx, target))
	assert.ErrorIs(t, s.CreateTarget(ctx, &models.Target{URL: target.URL, AccountID: "acct"}), ErrConflict)

	tick := &models.Tick{
		TargetID:    target.ID,
		ValidatorID: v.ID,
		Status:      constants.StatusBad,
		Details:     models.TickDetails{Error: "Request timed out", Code: constants.ErrCodeTimeout},
	}
	require.NoError(t, s.AppendTick(ctx, tick))
	assert.NotZero(t, tick.ID)

	ticks, err := s.RecentTicks(ctx, target.ID, 10)
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, constants.ErrCodeTimeout, ticks[0].Details.Code)

	require.NoError(t, s.RecordValidation(ctx, v.ID, time.Now()))
	got, err := s.GetValidator(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalValidations)
	assert.Equal(t, []string{"http", "https"}, got.Capabilities)

	require.NoError(t, s.DisableTarget(ctx, target.ID))
	_, err = s.GetValidator(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

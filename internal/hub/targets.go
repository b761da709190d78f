package hub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/GauravPawar101/Validate-me/internal/aggregator"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/storage"
)

// TargetReport is a target together with its recent activity.
type TargetReport struct {
	models.Target
	Ticks   []models.Tick      `json:"ticks"`
	Summary aggregator.Summary `json:"summary"`
}

// ValidatorView is a registered validator and whether it is connected now.
type ValidatorView struct {
	models.Validator
	Connected bool `json:"connected"`
}

// AddTarget starts monitoring rawURL for accountID.
func (h *Hub) AddTarget(ctx context.Context, accountID, rawURL string) (*models.Target, error) {
	normalized, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	t := &models.Target{
		ID:        uuid.NewString(),
		URL:       normalized,
		AccountID: accountID,
		CreatedAt: h.now(),
	}
	if err := h.store.CreateTarget(ctx, t); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTarget, normalized)
		}
		return nil, err
	}

	h.logger.Info().Str("website_id", t.ID).Str("url", t.URL).Str("account_id", accountID).Msg("Website added")
	return t, nil
}

// RemoveTarget stops monitoring a target. Its ticks are kept.
func (h *Hub) RemoveTarget(ctx context.Context, accountID, targetID string) error {
	if _, err := h.ownedTarget(ctx, accountID, targetID); err != nil {
		return err
	}
	if err := h.store.DisableTarget(ctx, targetID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTargetNotFound
		}
		return err
	}
	h.logger.Info().Str("website_id", targetID).Str("account_id", accountID).Msg("Website removed")
	return nil
}

// ListTargets returns the account's targets with their activity over the aggregation lookback.
func (h *Hub) ListTargets(ctx context.Context, accountID string) ([]TargetReport, error) {
	targets, err := h.store.ListTargets(ctx, accountID)
	if err != nil {
		return nil, err
	}

	reports := make([]TargetReport, 0, len(targets))
	for _, t := range targets {
		report, err := h.report(ctx, t)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// TargetStatus returns one target's activity.
func (h *Hub) TargetStatus(ctx context.Context, accountID, targetID string) (*TargetReport, error) {
	t, err := h.ownedTarget(ctx, accountID, targetID)
	if err != nil {
		return nil, err
	}
	return h.report(ctx, *t)
}

// Validators lists registered validators.
func (h *Hub) Validators(ctx context.Context) ([]ValidatorView, error) {
	validators, err := h.store.ListValidators(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]ValidatorView, 0, len(validators))
	for _, v := range validators {
		_, connected := h.sessions.Get(v.ID)
		views = append(views, ValidatorView{Validator: v, Connected: connected})
	}
	return views, nil
}

// report summarizes the whole tick history; only the ticks inside the
// aggregation lookback are returned.
func (h *Hub) report(ctx context.Context, t models.Target) (*TargetReport, error) {
	now := h.now()
	history, err := h.store.RecentTicks(ctx, t.ID, 0)
	if err != nil {
		return nil, err
	}

	since := now.Add(-aggregator.DefaultLookback)
	recent := make([]models.Tick, 0, len(history))
	for _, tick := range history {
		if tick.CreatedAt.After(since) {
			recent = append(recent, tick)
		}
	}
	return &TargetReport{
		Target:  t,
		Ticks:   recent,
		Summary: aggregator.Summarize(history, now),
	}, nil
}

func (h *Hub) ownedTarget(ctx context.Context, accountID, targetID string) (*models.Target, error) {
	t, err := h.store.GetTarget(ctx, targetID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, err
	}
	if t.Disabled || (accountID != "" && t.AccountID != accountID) {
		return nil, ErrTargetNotFound
	}
	return t, nil
}

func normalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u.String(), nil
}

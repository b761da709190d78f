package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/atomic"
)

// tickLog holds one target's ticks in tick order. Each target has its own
// lock so appends for different targets do not contend.
type tickLog struct {
	mu    sync.RWMutex
	ticks []models.Tick
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	vmu         sync.RWMutex
	validators  map[string]*models.Validator
	byPublicKey map[string]string

	tmu     sync.RWMutex
	targets map[string]*models.Target
	byURL   map[string]string

	ticks  cmap.ConcurrentMap[string, *tickLog]
	tickID *atomic.Int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		validators:  make(map[string]*models.Validator),
		byPublicKey: make(map[string]string),
		targets:     make(map[string]*models.Target),
		byURL:       make(map[string]string),
		ticks:       cmap.New[*tickLog](),
		tickID:      atomic.NewInt64(0),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateValidator(_ context.Context, v *models.Validator) error {
	s.vmu.Lock()
	defer s.vmu.Unlock()

	if _, exists := s.byPublicKey[v.PublicKey]; exists {
		return fmt.Errorf("validator with public key %s: %w", v.PublicKey, ErrConflict)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	cp := *v
	cp.Capabilities = append([]string(nil), v.Capabilities...)
	s.validators[v.ID] = &cp
	s.byPublicKey[v.PublicKey] = v.ID
	return nil
}

func (s *MemoryStore) GetValidator(_ context.Context, id string) (*models.Validator, error) {
	s.vmu.RLock()
	defer s.vmu.RUnlock()

	v, ok := s.validators[id]
	if !ok {
		return nil, fmt.Errorf("validator %s: %w", id, ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) FindValidatorByPublicKey(_ context.Context, publicKey string) (*models.Validator, error) {
	s.vmu.RLock()
	defer s.vmu.RUnlock()

	id, ok := s.byPublicKey[publicKey]
	if !ok {
		return nil, fmt.Errorf("validator with public key %s: %w", publicKey, ErrNotFound)
	}
	cp := *s.validators[id]
	return &cp, nil
}

func (s *MemoryStore) FindOnlineValidator(_ context.Context, address string) (*models.Validator, error) {
	s.vmu.RLock()
	defer s.vmu.RUnlock()

	var best *models.Validator
	for _, v := range s.validators {
		if !v.Online() || (address != "" && v.Address != address) {
			continue
		}
		if best == nil || v.LastSeen.After(best.LastSeen) ||
			(v.LastSeen.Equal(best.LastSeen) && v.ID < best.ID) {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("online validator: %w", ErrNotFound)
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) ListValidators(_ context.Context) ([]models.Validator, error) {
	s.vmu.RLock()
	defer s.vmu.RUnlock()

	out := make([]models.Validator, 0, len(s.validators))
	for _, v := range s.validators {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) updateValidator(id string, fn func(v *models.Validator)) error {
	s.vmu.Lock()
	defer s.vmu.Unlock()

	v, ok := s.validators[id]
	if !ok {
		return fmt.Errorf("validator %s: %w", id, ErrNotFound)
	}
	fn(v)
	return nil
}

func (s *MemoryStore) MarkValidatorOnline(_ context.Context, id, address string, at time.Time) error {
	return s.updateValidator(id, func(v *models.Validator) {
		v.Status = constants.ValidatorOnline
		v.LastSeen = at
		if address != "" {
			v.Address = address
		}
	})
}

func (s *MemoryStore) MarkValidatorOffline(_ context.Context, id string, at time.Time) error {
	return s.updateValidator(id, func(v *models.Validator) {
		v.Status = constants.ValidatorOffline
		v.LastSeen = at
	})
}

func (s *MemoryStore) TouchValidator(_ context.Context, id string, at time.Time) error {
	return s.updateValidator(id, func(v *models.Validator) {
		v.LastSeen = at
	})
}

func (s *MemoryStore) RecordValidation(_ context.Context, id string, at time.Time) error {
	return s.updateValidator(id, func(v *models.Validator) {
		v.TotalValidations++
		v.LastSeen = at
	})
}

func (s *MemoryStore) CreateTarget(_ context.Context, t *models.Target) error {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	if _, exists := s.byURL[t.URL]; exists {
		return fmt.Errorf("target %s: %w", t.URL, ErrConflict)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	s.targets[t.ID] = &cp
	s.byURL[t.URL] = t.ID
	return nil
}

func (s *MemoryStore) GetTarget(_ context.Context, id string) (*models.Target, error) {
	s.tmu.RLock()
	defer s.tmu.RUnlock()

	t, ok := s.targets[id]
	if !ok {
		return nil, fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) listTargets(match func(t *models.Target) bool) []models.Target {
	s.tmu.RLock()
	defer s.tmu.RUnlock()

	out := make([]models.Target, 0)
	for _, t := range s.targets {
		if match(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) ListTargets(_ context.Context, accountID string) ([]models.Target, error) {
	return s.listTargets(func(t *models.Target) bool {
		return !t.Disabled && t.AccountID == accountID
	}), nil
}

func (s *MemoryStore) ListEnabledTargets(_ context.Context) ([]models.Target, error) {
	return s.listTargets(func(t *models.Target) bool { return !t.Disabled }), nil
}

func (s *MemoryStore) SetTargetStatus(_ context.Context, id string, status constants.TickStatus, at time.Time) error {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		return fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	t.Status = status
	checked := at
	t.LastChecked = &checked
	return nil
}

func (s *MemoryStore) DisableTarget(_ context.Context, id string) error {
	s.tmu.Lock()
	defer s.tmu.Unlock()

	t, ok := s.targets[id]
	if !ok {
		return fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	t.Disabled = true
	return nil
}

func (s *MemoryStore) AppendTick(ctx context.Context, t *models.Tick) error {
	if err := validateTick(t); err != nil {
		return err
	}
	if _, err := s.GetTarget(ctx, t.TargetID); err != nil {
		return err
	}
	if _, err := s.GetValidator(ctx, t.ValidatorID); err != nil {
		return err
	}

	s.ticks.SetIfAbsent(t.TargetID, &tickLog{})
	log, _ := s.ticks.Get(t.TargetID)

	log.mu.Lock()
	defer log.mu.Unlock()

	t.ID = s.tickID.Inc()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	i := sort.Search(len(log.ticks), func(i int) bool { return t.Before(log.ticks[i]) })
	log.ticks = append(log.ticks, models.Tick{})
	copy(log.ticks[i+1:], log.ticks[i:])
	log.ticks[i] = *t
	return nil
}

func (s *MemoryStore) RecentTicks(_ context.Context, targetID string, limit int) ([]models.Tick, error) {
	log, ok := s.ticks.Get(targetID)
	if !ok {
		return []models.Tick{}, nil
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	n := len(log.ticks)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Tick, 0, n)
	for i := len(log.ticks) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, log.ticks[i])
	}
	return out, nil
}

func (s *MemoryStore) TicksSince(_ context.Context, targetID string, since time.Time) ([]models.Tick, error) {
	log, ok := s.ticks.Get(targetID)
	if !ok {
		return []models.Tick{}, nil
	}

	log.mu.RLock()
	defer log.mu.RUnlock()

	out := make([]models.Tick, 0)
	for i := len(log.ticks) - 1; i >= 0; i-- {
		if !log.ticks[i].CreatedAt.After(since) {
			break
		}
		out = append(out, log.ticks[i])
	}
	return out, nil
}

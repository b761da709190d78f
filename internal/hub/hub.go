// Package hub accepts validator connections, dispatches validation tasks,
// verifies signed results and records them as ticks.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/websocket"
	"github.com/jasonlvhit/gocron"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/correlation"
	"github.com/GauravPawar101/Validate-me/internal/metrics"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/internal/probe"
	"github.com/GauravPawar101/Validate-me/internal/storage"
	"github.com/GauravPawar101/Validate-me/internal/utils"
)

var (
	ErrTargetNotFound  = errors.New("website not found")
	ErrInvalidURL      = errors.New("invalid website url")
	ErrDuplicateTarget = errors.New("website already monitored")
	ErrNoValidator     = errors.New("no connected validator available")
)

// Config holds the hub's tunables.
type Config struct {
	TaskTimeout         time.Duration
	WatchdogInterval    time.Duration
	MaxAttempts         int
	ProtocolConstraint  string
	RewardPerValidation float64
	PingInterval        time.Duration

	SchedulerEnabled bool
	DispatchInterval time.Duration
	FallbackDirect   bool
	Workers          int
}

// TickPublisher forwards recorded ticks to an event bus.
type TickPublisher interface {
	PublishTick(tick models.Tick) error
}

// Hub coordinates validators and owns all in-flight tasks.
type Hub struct {
	cfg        Config
	store      storage.Store
	prober     *probe.Prober
	metrics    *metrics.Exporter
	publisher  TickPublisher
	constraint *semver.Constraints
	logger     zerolog.Logger
	now        func() time.Time

	sessions cmap.ConcurrentMap[string, *session]
	inflight *correlation.Registry[*PendingTask]
	upgrader websocket.Upgrader

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	pool      *utils.WorkerPool
	scheduler *gocron.Scheduler
	cronCh    chan bool
}

// NewHub creates a hub. publisher may be nil.
func NewHub(cfg Config, store storage.Store, prober *probe.Prober, exporter *metrics.Exporter,
	publisher TickPublisher, logger zerolog.Logger) (*Hub, error) {

	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = constants.DefaultTaskTimeout
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = cfg.TaskTimeout / 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.DefaultMaxTaskAttempts
	}
	if cfg.ProtocolConstraint == "" {
		cfg.ProtocolConstraint = constants.DefaultProtocolConstraint
	}
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	constraint, err := semver.NewConstraint(cfg.ProtocolConstraint)
	if err != nil {
		return nil, fmt.Errorf("invalid protocol constraint %q: %w", cfg.ProtocolConstraint, err)
	}
	if exporter == nil {
		exporter = metrics.NewExporter("")
	}

	return &Hub{
		cfg:        cfg,
		store:      store,
		prober:     prober,
		metrics:    exporter,
		publisher:  publisher,
		constraint: constraint,
		logger:     logger.With().Str("component", "hub").Logger(),
		now:        time.Now,
		sessions:   cmap.New[*session](),
		inflight:   correlation.NewRegistry[*PendingTask](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}, nil
}

// Metrics returns the hub's exporter.
func (h *Hub) Metrics() *metrics.Exporter {
	return h.metrics
}

// Start launches the watchdog, the pinger and, when enabled, the dispatch scheduler.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx != nil {
		return errors.New("hub is already running")
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	ctx := h.ctx
	h.pool = utils.NewWorkerPool(h.cfg.Workers)

	h.loop(ctx, h.cfg.WatchdogInterval, func(ctx context.Context) { h.SweepExpired(ctx) })
	if h.cfg.PingInterval > 0 {
		h.loop(ctx, h.cfg.PingInterval, h.pingAll)
	}
	if h.cfg.SchedulerEnabled {
		h.startScheduler(ctx)
	}

	h.logger.Info().
		Dur("task_timeout", h.cfg.TaskTimeout).
		Int("max_attempts", h.cfg.MaxAttempts).
		Bool("scheduler", h.cfg.SchedulerEnabled).
		Msg("Hub started")
	return nil
}

// Stop halts background work and closes every validator session.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx == nil {
		return errors.New("hub is not running")
	}
	if h.scheduler != nil {
		h.cronCh <- true
		h.scheduler.Clear()
		h.scheduler = nil
	}
	h.cancel()

	for item := range h.sessions.IterBuffered() {
		item.Val.close()
	}
	h.wg.Wait()
	h.pool.Shutdown()

	h.ctx = nil
	h.cancel = nil
	h.logger.Info().Msg("Hub stopped")
	return nil
}

func (h *Hub) loop(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ConnectedValidators returns the ids of validators with an open session.
func (h *Hub) ConnectedValidators() []string {
	return h.sessions.Keys()
}

// InflightTasks returns the number of tasks awaiting a result.
func (h *Hub) InflightTasks() int {
	return h.inflight.Len()
}

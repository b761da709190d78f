package metrics_collectors

import (
	"context"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/rs/zerolog"
)

// HostLoadCollector samples the host load reported in validator heartbeats.
type HostLoadCollector struct {
	CPU     MetricCollector
	Memory  MetricCollector
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewHostLoadCollector creates a collector backed by gopsutil.
func NewHostLoadCollector(logger zerolog.Logger) *HostLoadCollector {
	return &HostLoadCollector{
		CPU:     &CPUMetricCollector{},
		Memory:  &MemoryMetricCollector{},
		Timeout: 2 * time.Second,
		Logger:  logger,
	}
}

// Collect returns the current load, or nil when no metric could be read.
func (h *HostLoadCollector) Collect(ctx context.Context) *models.HostLoad {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	load := &models.HostLoad{}
	ok := false

	if h.CPU != nil {
		if v, err := h.CPU.Collect(ctx); err != nil {
			h.Logger.Warn().Err(err).Str("metric", h.CPU.Name()).Msg("Failed to collect host metric")
		} else {
			load.CPUPercent = v
			ok = true
		}
	}
	if h.Memory != nil {
		if v, err := h.Memory.Collect(ctx); err != nil {
			h.Logger.Warn().Err(err).Str("metric", h.Memory.Name()).Msg("Failed to collect host metric")
		} else {
			load.MemoryPercent = v
			ok = true
		}
	}

	if !ok {
		return nil
	}
	h.Logger.Debug().Float64("cpu_usage", load.CPUPercent).Float64("memory_usage_percent", load.MemoryPercent).Msg("Host load collected")
	return load
}

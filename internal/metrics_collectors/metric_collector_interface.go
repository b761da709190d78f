package metrics_collectors

import (
	"context"
)

// MetricCollector samples a single host metric.
type MetricCollector interface {
	Name() string                                 // Name of the metric (e.g., "cpu", "memory")
	Collect(ctx context.Context) (float64, error) // Current value of the metric
	Unit() string                                 // Unit of the metric (e.g., "percentage")
}

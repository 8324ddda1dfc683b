package workers

import (
	"context"
	"log/slog"
	"time"

	application "meridian/contexts/insurance-core/policy-service/application"
	"meridian/contexts/insurance-core/policy-service/ports"
)

// CorrelationEvictor sweeps correlation entries whose last update crossed the
// TTL, so a saga stuck on one missing confirmation does not pin memory
// forever. The bootstrap schedules it on its own cadence, decoupled from
// request handling.
type CorrelationEvictor struct {
	Correlation ports.CorrelationStore
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (e CorrelationEvictor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(e.Logger)
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock.Now().UTC()
	}

	evicted := e.Correlation.EvictExpired(now)
	if evicted > 0 {
		logger.Info("correlation eviction sweep completed",
			"event", "policy_correlation_eviction_completed",
			"module", "insurance-core/policy-service",
			"layer", "worker",
			"evicted_count", evicted,
		)
	}
	return nil
}

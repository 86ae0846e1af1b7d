package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/rs/zerolog"
)

// Engine issues, validates and revokes bearer sessions and coordinates
// password resets against a [UserDirectory].
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	codec        *jwt.Codec
	sessionStore SessionStore
	resetStore   *stores.PasswordResetStore
	rateLimiter  *rate.Limiter
	directory    UserDirectory
	audit        *auditDispatcher
	metrics      *Metrics
	logger       zerolog.Logger
	now          func() time.Time
	flows        flows.Deps
}

// Close stops the audit dispatcher after draining queued events. It does
// not close the Redis client.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// PublicPathPrefixes returns the configured gate allow-list.
func (e *Engine) PublicPathPrefixes() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.config.Gate.PublicPathPrefixes...)
}

// Ready reports whether the session store answers. It is meant for
// readiness probes.
func (e *Engine) Ready(ctx context.Context) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if _, err := e.sessionStore.Ping(ctx); err != nil {
		e.metricInc(MetricStoreUnavailable)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) loggerFor(ctx context.Context) *zerolog.Logger {
	l := e.logger
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}

func (e *Engine) warn(msg string, err error) {
	e.logger.Warn().Err(err).Msg(msg)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.sessionStore != nil && e.directory != nil
}

func storeUnavailable(err error) error {
	if err == nil {
		return ErrStoreUnavailable
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

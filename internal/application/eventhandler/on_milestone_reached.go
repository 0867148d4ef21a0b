// Package eventhandler contains handlers for integration events published on
// the bus. Handlers run after the write path has committed; everything they
// do is a side effect, so failures are logged and never propagated back to
// the pipeline that raised the event.
package eventhandler

import (
	"context"
	"errors"
	"time"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/notify"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
	"github.com/lexio-app/lexio-insight-hub/pkg/circuitbreaker"
	"github.com/lexio-app/lexio-insight-hub/pkg/logger"
	"github.com/lexio-app/lexio-insight-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE REACHED HANDLER
// Celebrates every non-terminal milestone with a push to the learner.
//
// Key functions:
// 1. Copy rendering - the milestone event becomes a push via the notify
//    copy deck
// 2. Resilient delivery - retry with backoff behind a circuit breaker, so
//    a flapping push gateway neither loses every push nor gets hammered
// 3. Failure isolation - a push that cannot be delivered is logged and
//    dropped
// ═══════════════════════════════════════════════════════════════════════════

// OnMilestoneReached delivers milestone celebration pushes.
type OnMilestoneReached struct {
	notifier notify.Notifier
	retrier  *retry.Retrier
	breaker  *circuitbreaker.CircuitBreaker
	log      *logger.Logger
	config   MilestoneReachedConfig
}

// MilestoneReachedConfig contains the handler configuration.
type MilestoneReachedConfig struct {
	// PushEnabled turns milestone pushes on or off globally.
	PushEnabled bool

	// MutedTypes lists milestone types that never produce a push.
	// Useful when a milestone fires too often to celebrate every time.
	MutedTypes []string

	// SendTimeout bounds one delivery including all retry attempts.
	SendTimeout time.Duration
}

// DefaultMilestoneReachedConfig returns the standard configuration.
func DefaultMilestoneReachedConfig() MilestoneReachedConfig {
	return MilestoneReachedConfig{
		PushEnabled: true,
		MutedTypes:  nil,
		SendTimeout: 10 * time.Second,
	}
}

// NewOnMilestoneReached creates the handler. A nil retrier or breaker falls
// back to the push-gateway presets; a nil logger falls back to the default.
func NewOnMilestoneReached(
	notifier notify.Notifier,
	retrier *retry.Retrier,
	breaker *circuitbreaker.CircuitBreaker,
	config MilestoneReachedConfig,
	log *logger.Logger,
) *OnMilestoneReached {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("on_milestone_reached"))

	if retrier == nil {
		retrier = retry.NotificationRetrier()
	}
	if breaker == nil {
		breaker = circuitbreaker.PushGatewayBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultMilestoneReachedConfig().SendTimeout
	}

	return &OnMilestoneReached{
		notifier: notifier,
		retrier:  retrier,
		breaker:  breaker,
		log:      log,
		config:   config,
	}
}

// EventType returns the event type this handler subscribes to.
func (h *OnMilestoneReached) EventType() shared.EventType {
	return shared.EventMilestoneReached
}

// Handle delivers the celebration push for a milestone event. It always
// returns nil: delivery problems are this handler's to log, not the bus's
// to redeliver.
func (h *OnMilestoneReached) Handle(event shared.Event) error {
	e, ok := event.(shared.MilestoneReachedEvent)
	if !ok {
		h.log.Warn("unexpected event type",
			logger.EventType(string(event.EventType())),
		)
		return nil
	}

	if !h.config.PushEnabled || h.muted(e.MilestoneType) {
		h.log.Debug("milestone push suppressed",
			logger.UserID(e.UserID),
			logger.Milestone(e.MilestoneType),
		)
		return nil
	}

	push := notify.ForMilestone(e)
	if err := push.Validate(); err != nil {
		h.log.Warn("milestone push not deliverable",
			logger.UserID(e.UserID),
			logger.Milestone(e.MilestoneType),
			logger.Err(err),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.SendTimeout)
	defer cancel()

	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.retrier.Do(ctx, func(ctx context.Context) error {
			if err := h.notifier.Send(ctx, push); err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			h.log.Warn("push gateway circuit open, dropping push",
				logger.UserID(e.UserID),
				logger.Milestone(e.MilestoneType),
			)
			return nil
		}
		h.log.Warn("milestone push failed",
			logger.UserID(e.UserID),
			logger.Milestone(e.MilestoneType),
			logger.Err(err),
		)
		return nil
	}

	h.log.Debug("milestone push delivered",
		logger.UserID(e.UserID),
		logger.UnitGroupID(e.UnitGroupID),
		logger.Milestone(e.MilestoneType),
	)
	return nil
}

// muted reports whether the milestone type is configured out of pushes.
func (h *OnMilestoneReached) muted(milestoneType string) bool {
	for _, t := range h.config.MutedTypes {
		if t == milestoneType {
			return true
		}
	}
	return false
}

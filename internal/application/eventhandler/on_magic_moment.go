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
// ON MAGIC MOMENT HANDLER
// Reacts to a learner fully mastering a unit group - the product's "magic
// moment".
//
// Key functions:
// 1. Stage unlock - tells the content service to open the next stage
// 2. Celebration - the highest-priority push the engine ever sends
// 3. Failure isolation - unlock and celebration fail independently; the
//    event itself is never failed, because the mastery is already recorded
//    and the unlock call is retry-safe on the next magic moment
// ═══════════════════════════════════════════════════════════════════════════

// OnMagicMoment unlocks the next stage and celebrates the completion.
type OnMagicMoment struct {
	gate     notify.StageGate
	notifier notify.Notifier

	// Stage unlock goes through its own retrier and breaker; the
	// celebration push only retries. A down push gateway must not block
	// unlocks, and vice versa.
	gateRetrier *retry.Retrier
	gateBreaker *circuitbreaker.CircuitBreaker
	pushRetrier *retry.Retrier

	log    *logger.Logger
	config MagicMomentConfig
}

// MagicMomentConfig contains the handler configuration.
type MagicMomentConfig struct {
	// UnlockEnabled turns the stage-gate call on or off.
	UnlockEnabled bool

	// CelebrationEnabled turns the celebration push on or off.
	CelebrationEnabled bool

	// UnlockTimeout bounds one unlock call including all retry attempts.
	UnlockTimeout time.Duration

	// SendTimeout bounds the celebration delivery including retries.
	SendTimeout time.Duration
}

// DefaultMagicMomentConfig returns the standard configuration.
func DefaultMagicMomentConfig() MagicMomentConfig {
	return MagicMomentConfig{
		UnlockEnabled:      true,
		CelebrationEnabled: true,
		UnlockTimeout:      15 * time.Second,
		SendTimeout:        10 * time.Second,
	}
}

// NewOnMagicMoment creates the handler. Nil retriers and breaker fall back
// to the stage-gate and notification presets; a nil logger falls back to
// the default.
func NewOnMagicMoment(
	gate notify.StageGate,
	notifier notify.Notifier,
	gateRetrier *retry.Retrier,
	gateBreaker *circuitbreaker.CircuitBreaker,
	pushRetrier *retry.Retrier,
	config MagicMomentConfig,
	log *logger.Logger,
) *OnMagicMoment {
	if log == nil {
		log = logger.Default()
	}
	log = log.With(logger.Component("on_magic_moment"))

	if gateRetrier == nil {
		gateRetrier = retry.StageGateRetrier()
	}
	if gateBreaker == nil {
		gateBreaker = circuitbreaker.StageGateBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	if pushRetrier == nil {
		pushRetrier = retry.NotificationRetrier()
	}
	if config.UnlockTimeout <= 0 {
		config.UnlockTimeout = DefaultMagicMomentConfig().UnlockTimeout
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultMagicMomentConfig().SendTimeout
	}

	return &OnMagicMoment{
		gate:        gate,
		notifier:    notifier,
		gateRetrier: gateRetrier,
		gateBreaker: gateBreaker,
		pushRetrier: pushRetrier,
		log:         log,
		config:      config,
	}
}

// EventType returns the event type this handler subscribes to.
func (h *OnMagicMoment) EventType() shared.EventType {
	return shared.EventMagicMoment
}

// Handle unlocks the next stage and sends the celebration push. It always
// returns nil; both side effects log their own failures.
func (h *OnMagicMoment) Handle(event shared.Event) error {
	e, ok := event.(shared.MagicMomentEvent)
	if !ok {
		h.log.Warn("unexpected event type",
			logger.EventType(string(event.EventType())),
		)
		return nil
	}

	// Step 1: unlock the next content stage.
	if h.config.UnlockEnabled {
		h.unlockNextStage(e)
	}

	// Step 2: celebrate.
	if h.config.CelebrationEnabled {
		h.celebrate(e)
	}

	return nil
}

func (h *OnMagicMoment) unlockNextStage(e shared.MagicMomentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.UnlockTimeout)
	defer cancel()

	userID := shared.UserID(e.UserID)
	err := h.gateBreaker.Execute(ctx, func(ctx context.Context) error {
		return h.gateRetrier.Do(ctx, func(ctx context.Context) error {
			if err := h.gate.UnlockNextStage(ctx, userID, e.UnitGroupID); err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			h.log.Error("stage gate circuit open, unlock skipped",
				logger.UserID(e.UserID),
				logger.UnitGroupID(e.UnitGroupID),
			)
			return
		}
		h.log.Error("stage unlock failed",
			logger.UserID(e.UserID),
			logger.UnitGroupID(e.UnitGroupID),
			logger.Err(err),
		)
		return
	}

	h.log.Info("next stage unlocked",
		logger.UserID(e.UserID),
		logger.UnitGroupID(e.UnitGroupID),
	)
}

func (h *OnMagicMoment) celebrate(e shared.MagicMomentEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.SendTimeout)
	defer cancel()

	push := notify.ForMagicMoment(e)
	err := h.pushRetrier.Do(ctx, func(ctx context.Context) error {
		if err := h.notifier.Send(ctx, push); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		h.log.Warn("celebration push failed",
			logger.UserID(e.UserID),
			logger.UnitGroupID(e.UnitGroupID),
			logger.Err(err),
		)
		return
	}

	h.log.Info("magic moment celebrated",
		logger.UserID(e.UserID),
		logger.UnitGroupID(e.UnitGroupID),
		logger.Int("completed_count", e.CompletedCount),
	)
}

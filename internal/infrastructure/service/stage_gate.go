package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/notify"
	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// StageGateStub implements notify.StageGate by recording unlocks in
// memory. Unlocking the same (user, group) twice is a no-op, matching the
// idempotency the real content service guarantees.
type StageGateStub struct {
	logger *slog.Logger

	mu       sync.Mutex
	unlocked map[string]struct{}
}

func NewStageGateStub(logger *slog.Logger) *StageGateStub {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageGateStub{
		logger:   logger,
		unlocked: make(map[string]struct{}),
	}
}

var _ notify.StageGate = (*StageGateStub)(nil)

func (s *StageGateStub) UnlockNextStage(ctx context.Context, userID shared.UserID, unitGroupID string) error {
	key := userID.String() + "/" + unitGroupID

	s.mu.Lock()
	_, already := s.unlocked[key]
	s.unlocked[key] = struct{}{}
	s.mu.Unlock()

	if already {
		s.logger.Debug("stub: stage already unlocked", "user_id", userID, "unit_group_id", unitGroupID)
		return nil
	}

	s.logger.Info("stub: unlocking next stage", "user_id", userID, "unit_group_id", unitGroupID)
	return nil
}

// IsUnlocked reports whether the next stage after unitGroupID has been
// opened for the user.
func (s *StageGateStub) IsUnlocked(userID shared.UserID, unitGroupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unlocked[userID.String()+"/"+unitGroupID]
	return ok
}

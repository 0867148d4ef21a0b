package notify

import (
	"context"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/shared"
)

// Notifier delivers pushes to a learner's devices. Implementations talk to
// the push gateway; callers own retry and failure handling.
type Notifier interface {
	// Send delivers one push. A nil error means the gateway accepted it,
	// not that the device displayed it.
	Send(ctx context.Context, push Push) error
}

// StageGate authorizes a learner's next content stage. Implementations call
// the content service that owns stage sequencing.
type StageGate interface {
	// UnlockNextStage opens the stage that follows unitGroupID for the
	// learner. Unlocking an already-open stage is a no-op, so the call is
	// safe to retry.
	UnlockNextStage(ctx context.Context, userID shared.UserID, unitGroupID string) error
}

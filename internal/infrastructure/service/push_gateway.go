// Package service contains adapters to the external services the engine
// talks to: the push gateway and the content service's stage sequencing.
// The stub implementations stand in until the real endpoints are wired, so
// the rest of the engine develops against the final ports.
package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/lexio-app/lexio-insight-hub/internal/domain/notify"

	"github.com/google/uuid"
)

// IDGeneratorImpl implements IDGenerator for request and correlation IDs.
type IDGeneratorImpl struct{}

func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// PushGatewayStub implements notify.Notifier by logging the push instead
// of delivering it. Delivery counts are tracked so tests and the health
// endpoint can observe throughput.
type PushGatewayStub struct {
	logger *slog.Logger
	sent   atomic.Int64
}

func NewPushGatewayStub(logger *slog.Logger) *PushGatewayStub {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushGatewayStub{logger: logger}
}

func (s *PushGatewayStub) Send(ctx context.Context, push notify.Push) error {
	s.sent.Add(1)
	s.logger.Info("stub: delivering push",
		"user_id", push.UserID,
		"kind", push.Kind,
		"priority", push.Priority,
		"title", push.Title)
	return nil
}

// Sent returns the number of pushes accepted so far.
func (s *PushGatewayStub) Sent() int64 {
	return s.sent.Load()
}

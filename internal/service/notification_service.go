package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/model"

	"github.com/sirupsen/logrus"
)

// Emitter publishes interaction events without making the caller wait or fail.
type Emitter interface {
	Emit(ctx context.Context, evt model.InteractionEvent)
}

// Publisher is the transport; *util.RabbitMQClient implements it.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

type NotificationService struct {
	publisher Publisher
	exchange  string
	timeout   time.Duration

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewNotificationService returns an emitter. A nil publisher turns Emit into a logged no-op,
// which is how the service runs when the broker is down at startup.
func NewNotificationService(publisher Publisher, exchange string, timeout time.Duration) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		exchange:  exchange,
		timeout:   timeout,
	}
}

// Emit publishes evt on a background goroutine. The caller's cancellation does not abort
// the publish; failures are logged and never reported back.
func (s *NotificationService) Emit(ctx context.Context, evt model.InteractionEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	log := logger.For(ctx).WithFields(logrus.Fields{
		"event_kind": evt.EventKind,
		"post_id":    evt.PostID,
		"actor_id":   evt.ActorID,
	})

	if s.publisher == nil {
		log.Warn("no event publisher configured, dropping event")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Warn("notifier is shutting down, dropping event")
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		if err := s.publish(pubCtx, evt); err != nil {
			log.WithError(err).Error("failed to publish interaction event")
			return
		}
		log.Debug("interaction event published")
	}()
}

func (s *NotificationService) publish(ctx context.Context, evt model.InteractionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publisher.Publish(ctx, s.exchange, evt.EventKind.RoutingKey(), body)
}

// Wait stops accepting events, then blocks until in-flight publishes finish or ctx is done.
// Events emitted after Wait has been called are dropped.
func (s *NotificationService) Wait(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

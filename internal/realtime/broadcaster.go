package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/task-board/internal/events"
)

// Broadcaster bridges committed mutation events onto connected sessions.
// It subscribes to the dispatcher, so the task service never talks to the
// websocket layer directly.
type Broadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewBroadcaster creates the bridge.
func NewBroadcaster(hub *Hub, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{hub: hub, logger: logger}
}

// RegisterHandlers subscribes to the mutation event catalog.
func (b *Broadcaster) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTaskCreated, b.handleEvent)
	dispatcher.Subscribe(events.EventTaskUpdated, b.handleEvent)
	dispatcher.Subscribe(events.EventTaskStatusUpdated, b.handleEvent)
	dispatcher.Subscribe(events.EventTaskDeleted, b.handleEvent)
}

func (b *Broadcaster) handleEvent(ctx context.Context, event events.Event) error {
	b.logger.Debug("broadcasting event",
		zap.String("event", string(event.Type)),
		zap.String("task_id", event.TaskID))
	b.hub.BroadcastAll(string(event.Type), event.Payload)
	return nil
}

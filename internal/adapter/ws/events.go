package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/careline/internal/port/broadcast"
)

var _ broadcast.Broadcaster = (*Hub)(nil)

// BroadcastEvent implements broadcast.Broadcaster. Task status events only
// reach clients watching that task or all tasks.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal ws event payload", "type", eventType, "error", err)
		return
	}

	msg := Message{Type: eventType, Payload: json.RawMessage(data)}
	if ev, ok := payload.(broadcast.TaskStatusEvent); ok {
		h.BroadcastToTask(ctx, ev.TaskID, msg)
		return
	}
	h.Broadcast(ctx, msg)
}

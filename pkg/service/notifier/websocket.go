package notifier

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

const writeTimeout = 5 * time.Second

// Client message types
const (
	MsgJoinTask  = "joinTask"
	MsgLeaveTask = "leaveTask"
)

// Server message types
const (
	MsgReady        = "ready"
	MsgJoined       = "joined"
	MsgLeft         = "left"
	MsgNotification = "notification"
	MsgError        = "error"
)

// ClientMessage is sent by a subscriber to change its rooms
type ClientMessage struct {
	Type   string       `json:"type"`
	TaskID types.TaskID `json:"taskId"`
}

// ServerMessage is everything written to a subscriber
type ServerMessage struct {
	Type      string          `json:"type"`
	Event     types.EventKind `json:"event,omitempty"`
	TaskID    types.TaskID    `json:"taskId,omitempty"`
	Data      any             `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Serve upgrades the request to a websocket and streams notifications to
// actor until either side closes
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, actor model.Actor, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		logging.From(r.Context()).Warn("Failed to accept websocket", slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.Subscribe(actor)
	defer sub.Close()

	logger := logging.From(ctx).With(slog.String("user_id", actor.ID.String()))
	replies := make(chan ServerMessage, 8)
	readErr := make(chan error, 1)

	go func() {
		for {
			var msg ClientMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				readErr <- err
				return
			}
			reply := sub.handle(ctx, msg)
			select {
			case replies <- reply:
			case <-ctx.Done():
				return
			}
		}
	}()

	write := func(msg ServerMessage) bool {
		writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
		defer cancelWrite()
		if err := wsjson.Write(writeCtx, conn, msg); err != nil {
			logger.Debug("Websocket write failed", slog.Any("error", err))
			_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
			return false
		}
		return true
	}

	if !write(ServerMessage{Type: MsgReady, Timestamp: time.Now().UTC()}) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-sub.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "subscription closed")
			return
		case err := <-readErr:
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				logger.Debug("Websocket read failed", slog.Any("error", err))
			}
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case n := <-sub.Messages():
			msg := ServerMessage{
				Type:      MsgNotification,
				Event:     n.Event,
				Data:      n.Payload,
				Timestamp: n.Timestamp,
			}
			if !write(msg) {
				return
			}
		}
	}
}

// handle applies one client message and returns the reply
func (s *Subscription) handle(ctx context.Context, msg ClientMessage) ServerMessage {
	now := time.Now().UTC()
	switch msg.Type {
	case MsgJoinTask:
		if err := s.JoinTask(ctx, msg.TaskID); err != nil {
			text := "failed to join task"
			switch {
			case errors.Is(err, ErrTaskNotFound):
				text = "task not found"
			case errors.Is(err, ErrForbidden):
				text = "access denied"
			default:
				logging.From(ctx).Error("Failed to join task", slog.Any("error", err))
			}
			return ServerMessage{Type: MsgError, TaskID: msg.TaskID, Message: text, Timestamp: now}
		}
		return ServerMessage{Type: MsgJoined, TaskID: msg.TaskID, Timestamp: now}

	case MsgLeaveTask:
		s.LeaveTask(msg.TaskID)
		return ServerMessage{Type: MsgLeft, TaskID: msg.TaskID, Timestamp: now}

	default:
		return ServerMessage{Type: MsgError, Message: "unknown message type", Timestamp: now}
	}
}

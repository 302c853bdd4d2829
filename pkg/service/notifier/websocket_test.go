package notifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/service/notifier"
)

func dial(t *testing.T, hub *notifier.Hub, actor model.Actor) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, actor, nil)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = conn.CloseNow() })

	var ready notifier.ServerMessage
	gt.NoError(t, wsjson.Read(ctx, conn, &ready)).Required()
	gt.Value(t, ready.Type).Equal(notifier.MsgReady)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) notifier.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var msg notifier.ServerMessage
	gt.NoError(t, wsjson.Read(ctx, conn, &msg)).Required()
	return msg
}

func TestServeJoinAndReceive(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	conn := dial(t, f.hub, f.assignee)

	gt.NoError(t, wsjson.Write(ctx, conn, notifier.ClientMessage{Type: notifier.MsgJoinTask, TaskID: f.task.ID})).Required()
	joined := readMessage(t, conn)
	gt.Value(t, joined.Type).Equal(notifier.MsgJoined)
	gt.Value(t, joined.TaskID).Equal(f.task.ID)

	n := model.NewTaskNotification(types.EventTaskUpdated, f.task, map[string]string{"title": f.task.Title}, time.Now())
	gt.NoError(t, f.hub.Notify(ctx, n)).Required()

	msg := readMessage(t, conn)
	gt.Value(t, msg.Type).Equal(notifier.MsgNotification)
	gt.Value(t, msg.Event).Equal(types.EventTaskUpdated)
}

func TestServeRefusesForeignTask(t *testing.T) {
	f := setup(t)
	conn := dial(t, f.hub, f.stranger)

	gt.NoError(t, wsjson.Write(context.Background(), conn,
		notifier.ClientMessage{Type: notifier.MsgJoinTask, TaskID: f.task.ID})).Required()

	msg := readMessage(t, conn)
	gt.Value(t, msg.Type).Equal(notifier.MsgError)
	gt.Value(t, msg.Message).Equal("access denied")
}

func TestServeClosesOnDisconnect(t *testing.T) {
	f := setup(t)
	conn := dial(t, f.hub, f.creator)

	f.hub.Disconnect(context.Background(), f.creator.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	gt.Value(t, websocket.CloseStatus(err)).Equal(websocket.StatusPolicyViolation)
}

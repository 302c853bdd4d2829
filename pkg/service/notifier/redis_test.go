package notifier_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/service/notifier"
)

func TestRedisRelay(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	f := setup(t)
	ctx := context.Background()
	channel := fmt.Sprintf("tasklane_test_%d", time.Now().UnixNano())

	newRelay := func(hub *notifier.Hub) *notifier.RedisRelay {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		relay := notifier.NewRedisRelay(client, channel, hub)
		gt.NoError(t, relay.Start(ctx)).Required()
		t.Cleanup(relay.Stop)
		return relay
	}

	// two instances share one channel; a notification sent on the first
	// reaches a subscriber connected to the second
	sender := newRelay(notifier.NewHub(f.repo.Task()))
	remoteHub := notifier.NewHub(f.repo.Task())
	newRelay(remoteHub)

	sub := remoteHub.Subscribe(f.assignee)
	defer sub.Close()
	outsider := remoteHub.Subscribe(f.stranger)
	defer outsider.Close()

	n := model.NewTaskNotification(types.EventTaskCreated, f.task, nil, time.Now())
	gt.NoError(t, sender.Notify(ctx, n)).Required()

	select {
	case got := <-sub.Messages():
		gt.Value(t, got.Event).Equal(types.EventTaskCreated)
		gt.Value(t, got.Task.ID).Equal(f.task.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("relayed notification not delivered")
	}
	gt.Value(t, received(outsider)).Nil()

	sender.Disconnect(ctx, f.assignee.ID)
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("relayed disconnect not applied")
	}
}

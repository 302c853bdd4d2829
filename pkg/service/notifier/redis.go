package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/errutil"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

// envelope is the message published on the relay channel
type envelope struct {
	Notification *model.Notification `json:"notification,omitempty"`
	Disconnect   types.UserID        `json:"disconnect,omitempty"`
}

// RedisRelay shares notifications and disconnects between instances over a
// Redis pub/sub channel. Every instance, the sender included, delivers what
// it receives to its local Hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   *Hub

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ interfaces.Notifier = &RedisRelay{}

func NewRedisRelay(client *redis.Client, channel string, local *Hub) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (r *RedisRelay) publish(ctx context.Context, env envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return goerr.Wrap(err, "failed to encode relay message")
	}
	if err := r.client.Publish(ctx, r.channel, raw).Err(); err != nil {
		return goerr.Wrap(err, "failed to publish relay message", goerr.V("channel", r.channel))
	}
	return nil
}

func (r *RedisRelay) Notify(ctx context.Context, n *model.Notification) error {
	return r.publish(ctx, envelope{Notification: n})
}

func (r *RedisRelay) Disconnect(ctx context.Context, userID types.UserID) {
	if err := r.publish(ctx, envelope{Disconnect: userID}); err != nil {
		errutil.Handle(ctx, err, "failed to relay disconnect")
		r.local.Disconnect(ctx, userID)
	}
}

// Start subscribes to the channel. It returns once the subscription is
// confirmed and keeps relaying until Stop.
func (r *RedisRelay) Start(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return goerr.Wrap(err, "failed to subscribe relay channel", goerr.V("channel", r.channel))
	}

	r.started.Store(true)
	logging.From(ctx).Info("Notification relay started", slog.String("channel", r.channel))
	go r.run(ctx, pubsub)
	return nil
}

func (r *RedisRelay) run(ctx context.Context, pubsub *redis.PubSub) {
	defer close(r.doneCh)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.deliver(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to decode relay message"), "dropping relay message")
		return
	}

	if env.Disconnect != "" {
		r.local.Disconnect(ctx, env.Disconnect)
	}
	if env.Notification != nil {
		if err := r.local.Notify(ctx, env.Notification); err != nil {
			errutil.Handle(ctx, err, "failed to deliver relayed notification")
		}
	}
}

// Stop ends relaying and waits for the receive loop to exit
func (r *RedisRelay) Stop() {
	if !r.started.Load() {
		return
	}
	close(r.stopCh)
	<-r.doneCh
	logging.Default().Info("Notification relay stopped")
}

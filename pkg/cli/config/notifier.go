package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/service/notifier"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	NotifierLocal = "local"
	NotifierRedis = "redis"
)

// Notifier holds CLI flags for change notification fan-out
type Notifier struct {
	backend       string
	redisAddr     string
	redisPassword string `masq:"secret"`
	redisDB       int
	channel       string
}

// Flags returns CLI flags for notifier configuration
func (n *Notifier) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "notifier-backend",
			Usage:       "Notification fan-out (local for a single process, redis for several)",
			Value:       NotifierLocal,
			Category:    "Notifier",
			Sources:     cli.EnvVars("TASKLANE_NOTIFIER_BACKEND"),
			Destination: &n.backend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) for the redis notifier",
			Value:       "localhost:6379",
			Category:    "Notifier",
			Sources:     cli.EnvVars("TASKLANE_REDIS_ADDR"),
			Destination: &n.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Notifier",
			Sources:     cli.EnvVars("TASKLANE_REDIS_PASSWORD"),
			Destination: &n.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Notifier",
			Sources:     cli.EnvVars("TASKLANE_REDIS_DB"),
			Destination: &n.redisDB,
		},
		&cli.StringFlag{
			Name:        "redis-channel",
			Usage:       "Redis pub/sub channel for notifications",
			Value:       "tasklane:notifications",
			Category:    "Notifier",
			Sources:     cli.EnvVars("TASKLANE_REDIS_CHANNEL"),
			Destination: &n.channel,
		},
	}
}

func (n Notifier) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", n.backend),
		slog.String("redis_addr", n.redisAddr),
		slog.Int("redis_db", n.redisDB),
		slog.String("redis_channel", n.channel),
	)
}

// Configure returns the notifier use cases publish to. With the redis
// backend, notifications travel through the channel and every process
// delivers them to its own hub. The returned function stops the relay.
func (n *Notifier) Configure(ctx context.Context, hub *notifier.Hub) (interfaces.Notifier, func(), error) {
	switch n.backend {
	case NotifierLocal:
		return hub, func() {}, nil

	case NotifierRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     n.redisAddr,
			Password: n.redisPassword,
			DB:       n.redisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, goerr.Wrap(err, "failed to connect redis", goerr.V("addr", n.redisAddr))
		}

		relay := notifier.NewRedisRelay(client, n.channel, hub)
		if err := relay.Start(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return relay, func() {
			relay.Stop()
			if err := client.Close(); err != nil {
				logging.Default().Warn("failed to close redis client", "error", err)
			}
		}, nil

	default:
		return nil, nil, goerr.New("invalid notifier backend", goerr.V("backend", n.backend))
	}
}

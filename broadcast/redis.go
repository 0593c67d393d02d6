package broadcast

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

const (
	DefaultUpdatesChannel = "task-updates"
	publishTimeout        = 2 * time.Second
)

// RedisRelay carries task events between API instances over Redis pub/sub.
// Every instance publishes to the shared channel and delivers what it
// receives to its own Hub, so subscribers see events from any instance.
type RedisRelay struct {
	rc         *redis.Client
	channel    string
	hub        *Hub
	logger     *log.Logger
	retryDelay time.Duration
}

func NewRedisRelay(rc *redis.Client, channel string, hub *Hub, logger *log.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultUpdatesChannel
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisRelay{rc: rc, channel: channel, hub: hub, logger: logger, retryDelay: time.Second}
}

// Publish sends ev to all instances. If Redis is unreachable the event is
// delivered to the local hub only.
func (r *RedisRelay) Publish(ctx context.Context, projectID string, ev domain.TaskEvent) {
	payload, env, err := encodeEnvelope(projectID, ev)
	if err != nil {
		r.logger.WithError(err).WithField("project", projectID).Error("encode task event")
		return
	}
	// the mutation is already committed; a cancelled request must not stop the broadcast
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := r.rc.Publish(pubCtx, r.channel, env).Err(); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{"project": projectID, "channel": r.channel}).Warn("redis publish failed, delivering locally")
		r.hub.Deliver(projectID, payload)
	}
}

// Run consumes the shared channel until ctx is done, resubscribing when the
// subscription is lost.
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		r.consume(ctx, sub.Channel())
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.WithField("channel", r.channel).Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			env, err := DecodeEnvelope([]byte(msg.Payload))
			if err != nil {
				r.logger.Errorf("unable to parse task update: %v", err)
				continue
			}
			n := r.hub.Deliver(env.ProjectID, env.Event)
			r.logger.WithFields(log.Fields{"project": env.ProjectID, "delivered": n}).Debug("task update relayed")
		}
	}
}

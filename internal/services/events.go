package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
)

// Event types published on a user's channel. Payloads carry no row
// data; subscribers re-query the lists they care about.
const (
	EventFriendsChanged  = "friends_changed"
	EventRequestsChanged = "requests_changed"
)

// EventChannel returns the pub/sub channel for one user's change feed.
func EventChannel(userID uuid.UUID) string {
	return "events:" + userID.String()
}

// ChangeNotifier fans out coarse change events to interested clients.
// Delivery is best effort; mutations never fail because of it.
type ChangeNotifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string)
}

// RedisNotifier publishes change events over Redis pub/sub so they
// reach subscribers on any server instance.
type RedisNotifier struct {
	redis RedisClient
}

func NewRedisNotifier(redisClient RedisClient) *RedisNotifier {
	return &RedisNotifier{redis: redisClient}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, event string) {
	payload, err := json.Marshal(map[string]string{"type": event})
	if err != nil {
		return
	}
	if err := n.redis.Publish(ctx, EventChannel(userID), payload); err != nil {
		logging.Warn("publishing change event failed", map[string]interface{}{
			"user_id": userID.String(),
			"event":   event,
			"error":   err.Error(),
		})
	}
}

// NopNotifier drops events. Used in tests and guest mode, where there
// is no remote subscriber.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, uuid.UUID, string) {}

package publish

import (
	"context"
)

// channelPublisher is the subset of cache.Cache the Redis publisher needs.
type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Redis publishes JSON messages to channels named by joining the subject
// with ":".
type Redis struct {
	client channelPublisher
}

func NewRedis(client channelPublisher) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, subject Subject, payload interface{}) error {
	channel, err := subject.join(":")
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, payload)
}

func (r *Redis) Backend() string { return "redis" }

// Close is a no-op. The client belongs to the cache, which closes it.
func (r *Redis) Close() error { return nil }

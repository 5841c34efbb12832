package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/mortgage-trainer/pkg/http/ws"
)

// DefaultChannel is the Pub/Sub channel carrying leaderboard updates.
const DefaultChannel = "lb:updates"

// RedisPublisher publishes updates on a Redis Pub/Sub channel so every API instance
// can forward them to its own WebSocket clients.
type RedisPublisher struct {
	redis   *redis.Client
	channel string
}

// NewRedisPublisher creates a Pub/Sub publisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{redis: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, update Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal leaderboard update: %w", err)
	}
	if err := p.redis.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish leaderboard update: %w", err)
	}
	return nil
}

// HubPublisher broadcasts updates straight to the local hub. It serves
// single-instance deployments that run without Redis, and is the last hop of
// the Redis path.
type HubPublisher struct {
	hub *ws.Hub
}

// NewHubPublisher creates an in-process publisher.
func NewHubPublisher(hub *ws.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, update Update) error {
	msg, err := ws.NewMessage(ws.TypeLeaderboardUpdate, toWSPayload(update))
	if err != nil {
		return fmt.Errorf("marshal leaderboard update: %w", err)
	}
	return p.hub.BroadcastAll(msg)
}

// Broadcaster relays updates from the Pub/Sub channel to this instance's clients.
type Broadcaster struct {
	redis   *redis.Client
	local   *HubPublisher
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster subscribes hub to channel once Run is called.
func NewBroadcaster(client *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	var local *HubPublisher
	if hub != nil {
		local = NewHubPublisher(hub)
	}
	return &Broadcaster{
		redis:   client,
		local:   local,
		channel: channel,
		logger:  logger.With().Str("component", "leaderboard_broadcaster").Logger(),
	}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.local == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Updates published before the subscription is confirmed would be dropped.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("leaderboard feed subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var update Update
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				b.logger.Warn().Err(err).Msg("dropping undecodable leaderboard update")
				continue
			}
			if err := b.local.Publish(ctx, update); err != nil {
				b.logger.Warn().Err(err).Str("mode", string(update.Mode)).Msg("leaderboard broadcast incomplete")
			}
		}
	}
}

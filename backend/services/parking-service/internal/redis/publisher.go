package redisstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"smartpark/backend/services/parking-service/internal/models"
)

// DefaultChannel receives slot updates for other instances and dashboards.
const DefaultChannel = "parking:slot-updates"

// Publisher fans slot updates out over redis pub/sub.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher returns publisher on channel.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Name() string { return "redis" }

// PublishSlotUpdate publishes the update as JSON.
func (p *Publisher) PublishSlotUpdate(ctx context.Context, update models.SlotUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
)

const notifyTimeout = 2 * time.Second

// Notifier delivers slot updates to live clients.
type Notifier interface {
	Name() string
	PublishSlotUpdate(ctx context.Context, update models.SlotUpdate) error
}

// broadcaster fans updates out to every notifier. Delivery is best effort: failures are
// logged and counted, never returned.
type broadcaster struct {
	notifiers []Notifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func (b *broadcaster) publish(ctx context.Context, slots ...*models.Slot) {
	if len(b.notifiers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for _, slot := range slots {
		if slot == nil {
			continue
		}
		update := models.SlotUpdate{SlotID: slot.ID, Status: slot.Status}
		for _, n := range b.notifiers {
			if err := n.PublishSlotUpdate(ctx, update); err != nil {
				b.metrics.NotifyFailure(n.Name())
				b.logger.Warn("slot update not delivered",
					zap.String("notifier", n.Name()),
					zap.String("slot_id", update.SlotID),
					zap.Error(err),
				)
			}
		}
	}
}

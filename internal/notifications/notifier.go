// Package notifications fans property mutation events out to connected admins.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"propertyhub/internal/models"

	"github.com/redis/go-redis/v9"
)

// PropertyEventsChannel carries every property.created/updated/deleted event.
const PropertyEventsChannel = "properties:events"

// Notifier publishes property events into Redis so every API instance can relay them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishPropertyEvent sends evt as JSON on PropertyEventsChannel. Without Redis it is a no-op.
func (n *Notifier) PublishPropertyEvent(ctx context.Context, evt models.PropertyEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal property event: %w", err)
	}
	return n.rdb.Publish(ctx, PropertyEventsChannel, payload).Err()
}

// StartPropertySubscriber subscribes to PropertyEventsChannel and calls onMessage for
// each payload until ctx is cancelled. It returns once the subscription is confirmed.
func (n *Notifier) StartPropertySubscriber(ctx context.Context, onMessage func(payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, PropertyEventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", PropertyEventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PropertySubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}

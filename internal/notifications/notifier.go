// Package notifications provides real-time notification delivery for borrow
// request events.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"toolhub/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Redis channels. Librarians share one channel for review-queue events;
// each patron has their own.
const (
	LibrarianChannel  = "notifications:librarians"
	UserChannelPrefix = "notifications:user:"
)

// Event types published on the channels.
const (
	EventBorrowRequested = "borrow_requested"
	EventBorrowApproved  = "borrow_approved"
	EventBorrowDenied    = "borrow_denied"
	EventBorrowReturned  = "borrow_returned"
)

// Event is the wire format for a notification.
type Event struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func marshalEvent(eventType string, payload map[string]any) (string, error) {
	b, err := json.Marshal(Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// PublishUser sends an event to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, eventType string, payload map[string]any) error {
	if n.rdb == nil {
		return nil
	}
	body, err := marshalEvent(eventType, payload)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("%s%d", UserChannelPrefix, userID)
	if err := n.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return err
	}
	observability.NotificationsPublished.WithLabelValues("user", eventType).Inc()
	return nil
}

// PublishLibrarians sends an event to the shared librarian channel. New
// pending requests land here so any librarian can pick them up.
func (n *Notifier) PublishLibrarians(ctx context.Context, eventType string, payload map[string]any) error {
	if n.rdb == nil {
		return nil
	}
	body, err := marshalEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, LibrarianChannel, body).Err(); err != nil {
		return err
	}
	observability.NotificationsPublished.WithLabelValues("librarians", eventType).Inc()
	return nil
}

// StartPatternSubscriber subscribes to the user pattern and the librarian
// channel, calling onMessage for each incoming message.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, UserChannelPrefix+"*", LibrarianChannel)
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
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

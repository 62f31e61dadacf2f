package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/playpool/snooker/internal/game"
	"github.com/redis/go-redis/v9"
)

// EventsChannel carries game events between server instances.
const EventsChannel = "snooker_events"

// RedisPublisher publishes game events to EventsChannel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a publisher on rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev game.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, EventsChannel, b).Err()
}

// StartEventSubscriber relays EventsChannel messages to the hub's clients
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, EventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Printf("[WS] %s subscriber started", EventsChannel)
		for msg := range ch {
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				log.Printf("[WS] invalid event payload: %v", err)
				continue
			}
			hub.Dispatch(ev)
		}
		log.Printf("[WS] %s subscriber stopped", EventsChannel)
	}()
}

func decodeEvent(payload string) (game.Event, error) {
	var ev game.Event
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}

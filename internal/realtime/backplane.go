package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stagecast/distributor/pkg/logger"
)

const backplaneChannel = "distributor:events"

const (
	scopeUser   = "user"
	scopeDevice = "device"
	scopeRouter = "router"
	scopeAll    = "all"
)

type backplaneFrame struct {
	Origin string          `json:"origin"`
	Scope  string          `json:"scope"`
	Key    string          `json:"key,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// Backplane relays hub events between server instances over redis
// pub/sub, so a user connected to one instance still sees changes made
// through another.
type Backplane struct {
	client *redis.Client
	hub    *Hub
	origin string
	cancel context.CancelFunc
}

func NewBackplane(addr, password string, db int, hub *Hub) (*Backplane, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Backplane{
		client: client,
		hub:    hub,
		origin: uuid.NewString(),
	}, nil
}

// Start subscribes to the event channel and delivers relayed frames to
// local connections until Stop is called.
func (b *Backplane) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	sub := b.client.Subscribe(ctx, backplaneChannel)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var frame backplaneFrame
				if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
					logger.Warn().Err(err).Msg("backplane: dropping malformed frame")
					continue
				}
				if frame.Origin == b.origin {
					continue
				}
				b.hub.DeliverLocal(frame.Scope, frame.Key, frame.Data)
			}
		}
	}()
	logger.Info().Str("channel", backplaneChannel).Msg("event backplane started")
}

func (b *Backplane) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.client.Close(); err != nil {
		logger.Warn().Err(err).Msg("backplane: close failed")
	}
}

func (b *Backplane) Publish(scope, key string, data []byte) {
	frame, err := json.Marshal(backplaneFrame{
		Origin: b.origin,
		Scope:  scope,
		Key:    key,
		Data:   data,
	})
	if err != nil {
		logger.Error().Err(err).Msg("backplane: failed to encode frame")
		return
	}
	if err := b.client.Publish(context.Background(), backplaneChannel, frame).Err(); err != nil {
		logger.Warn().Err(err).Msg("backplane: publish failed")
	}
}

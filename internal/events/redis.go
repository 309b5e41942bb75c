package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel — канал Redis для событий каталога.
const DefaultChannel = "fitfinder:entity-created"

// RedisBus рассылает события всем экземплярам сервиса через Redis pub/sub.
// Локальные подписчики получают события только из Run, в том числе собственные.
type RedisBus struct {
	client  *redis.Client
	channel string
	d       *dispatcher
	log     *zap.Logger
}

// NewRedisBus подключается к Redis и проверяет соединение.
func NewRedisBus(ctx context.Context, addr string, log *zap.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBusWithClient(client, DefaultChannel, log), nil
}

// NewRedisBusWithClient создаёт шину поверх готового клиента.
func NewRedisBusWithClient(client *redis.Client, channel string, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{
		client:  client,
		channel: channel,
		d:       newDispatcher(),
		log:     log,
	}
}

// Publish отправляет событие в канал Redis.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// OnEntityCreated регистрирует обработчик.
func (b *RedisBus) OnEntityCreated(h Handler) func() {
	return b.d.subscribe(h)
}

// Run подписывается на канал и передаёт события локальным обработчикам
// до отмены контекста.
func (b *RedisBus) Run(ctx context.Context) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("skip malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			b.d.dispatch(ev)
		}
	}
}

// Close закрывает клиент Redis.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// Package events доставляет уведомления о создании записей каталога.
//
// Подписчики регистрируются через OnEntityCreated и получают каждое событие
// после фиксации записи в хранилище.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mmeshcher/fitfinder/internal/model"
)

// Kind определяет тип созданной записи.
type Kind string

const (
	KindGymCreated     Kind = "gym.created"
	KindRatingCreated  Kind = "rating.created"
	KindCommentCreated Kind = "comment.created"
)

// Event описывает созданную запись.
type Event struct {
	Kind      Kind            `json:"kind"`
	EntityID  string          `json:"entityId"`
	GymID     string          `json:"gymId"`
	State     string          `json:"state,omitempty"`
	City      string          `json:"city,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEvent собирает событие, сериализуя созданную запись в Payload.
func NewEvent(kind Kind, entityID, gymID string, loc model.Location, payload any) (Event, error) {
	ev := Event{
		Kind:      kind,
		EntityID:  entityID,
		GymID:     gymID,
		State:     loc.State,
		City:      loc.City,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// Handler обрабатывает событие. Handler не должен блокироваться надолго.
type Handler func(Event)

// Bus публикует события и рассылает их подписчикам.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// OnEntityCreated регистрирует обработчик и возвращает функцию отписки.
	OnEntityCreated(h Handler) (unsubscribe func())
	Run(ctx context.Context) error
	Close() error
}

// dispatcher хранит локальных подписчиков.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[int]Handler)}
}

func (d *dispatcher) subscribe(h Handler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

func (d *dispatcher) dispatch(ev Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (d *dispatcher) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

// MemoryBus рассылает события подписчикам внутри процесса.
type MemoryBus struct {
	d *dispatcher
}

// NewMemoryBus создаёт шину для одного экземпляра сервиса.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{d: newDispatcher()}
}

// Publish синхронно передаёт событие всем подписчикам.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.d.dispatch(ev)
	return nil
}

// OnEntityCreated регистрирует обработчик.
func (b *MemoryBus) OnEntityCreated(h Handler) func() {
	return b.d.subscribe(h)
}

// Run блокируется до отмены контекста.
func (b *MemoryBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Close ничего не делает.
func (b *MemoryBus) Close() error { return nil }

package schedulestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
)

// MemoryAdapter - встраиваемое хранилище недельных расписаний в памяти
// Уведомляет подписчиков о каждой мутации, включая записи движка синхронизации -
// фильтрация эха остается за подписчиком
type MemoryAdapter struct {
	mu          sync.Mutex
	items       map[string]*domain.HelperDefinition
	subscribers map[string]func(key string)
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		items:       make(map[string]*domain.HelperDefinition),
		subscribers: make(map[string]func(key string)),
	}
}

func (a *MemoryAdapter) CreateItem(ctx context.Context, key string, def *domain.HelperDefinition) error {
	a.mu.Lock()
	if _, exists := a.items[key]; exists {
		a.mu.Unlock()
		return fmt.Errorf("item already exists: %s", key)
	}
	a.items[key] = def.Clone()
	a.mu.Unlock()

	a.notify(key)
	return nil
}

func (a *MemoryAdapter) UpdateItem(ctx context.Context, key string, def *domain.HelperDefinition) error {
	a.mu.Lock()
	if _, exists := a.items[key]; !exists {
		a.mu.Unlock()
		return fmt.Errorf("item not found: %s", key)
	}
	a.items[key] = def.Clone()
	a.mu.Unlock()

	a.notify(key)
	return nil
}

func (a *MemoryAdapter) DeleteItem(ctx context.Context, key string) error {
	a.mu.Lock()
	_, exists := a.items[key]
	delete(a.items, key)
	a.mu.Unlock()

	if exists {
		a.notify(key)
	}
	return nil
}

func (a *MemoryAdapter) GetItem(ctx context.Context, key string) (*domain.HelperDefinition, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	def, exists := a.items[key]
	if !exists {
		return nil, nil
	}
	return def.Clone(), nil
}

func (a *MemoryAdapter) Subscribe(handler func(key string)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	a.subscribers[id] = handler

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *MemoryAdapter) notify(key string) {
	a.mu.Lock()
	handlers := make([]func(string), 0, len(a.subscribers))
	for _, handler := range a.subscribers {
		handlers = append(handlers, handler)
	}
	a.mu.Unlock()

	for _, handler := range handlers {
		handler(key)
	}
}

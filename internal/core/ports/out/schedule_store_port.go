package out

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
)

// ScheduleStorePort - контракт локального хранилища недельных расписаний
// Ключи непрозрачны для хранилища, движок выводит их детерминированно из (serial, slot_id)
// Создание с явным ключом - полноправная операция контракта
type ScheduleStorePort interface {
	CreateItem(ctx context.Context, key string, def *domain.HelperDefinition) error
	UpdateItem(ctx context.Context, key string, def *domain.HelperDefinition) error
	DeleteItem(ctx context.Context, key string) error

	// GetItem возвращает nil без ошибки, если элемента нет
	GetItem(ctx context.Context, key string) (*domain.HelperDefinition, error)

	// Subscribe регистрирует обработчик "элемент с ключом key изменился"
	// Хранилище уведомляет о каждой мутации, включая записи самого движка -
	// фильтрация эха остается за подписчиком. Возвращает функцию отписки
	Subscribe(handler func(key string)) (unsubscribe func())
}

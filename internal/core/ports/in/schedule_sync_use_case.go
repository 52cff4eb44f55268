package in

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
)

type ScheduleSyncUseCase interface {
	// Запуск: загрузка маппинга, подписки, периодический опрос и немедленная выборка
	Start(ctx context.Context) error

	// Остановка таймера и подписок, текущие операции довыполняются
	Stop()

	// Полный цикл выборки (single-flight, повторный вызов во время работы - no-op)
	Refresh(ctx context.Context)

	// Сигнал "данные источника изменились", выборка с дебаунсом по интервалу
	HandleUpstreamChanged(ctx context.Context)

	// Уведомление об изменении элемента локального хранилища
	HandleItemChanged(ctx context.Context, key string)

	// Тонкий патч включения/выключения слота, для вне-пиковых слотов
	// проверяется разрешение из конфигурации последней выборки
	SetSlotEnabled(ctx context.Context, serial, slotID string, enabled bool)

	// Диагностический снапшот - единственный наружный сигнал о сбоях
	Diagnostics() domain.SyncDiagnostics

	// Поиск ключа локального элемента для слота, для слоя связывания устройств
	LocalItemFor(serial, slotID string) (string, bool)

	// Все отслеживаемые слоты, для построения пользовательских тумблеров
	TrackedSlots() []domain.TrackedSlot
}

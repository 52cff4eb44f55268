package out

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
)

// FetchSlotsResult - ответ облака на выборку расписания зарядки
type FetchSlotsResult struct {
	ConcurrencyToken string              `json:"concurrencyToken"`
	Config           domain.ChargeConfig `json:"config"`
	Slots            []*domain.Slot      `json:"slots"`
}

// PatchSlotsResult - ответ облака на патч расписания
// Новый токен может отсутствовать, тогда перед следующим патчем нужна выборка
type PatchSlotsResult struct {
	ConcurrencyToken string `json:"concurrencyToken"`
}

type CloudPort interface {
	// Выборка слотов расписания зарядки автомобиля
	FetchSlots(ctx context.Context, serial string) (*FetchSlotsResult, error)

	// Патч слотов с токеном оптимистичной конкуренции из последней выборки
	PatchSlots(ctx context.Context, serial, concurrencyToken string, slots []*domain.Slot) (*PatchSlotsResult, error)
}

// CredentialsPort - синхронная неблокирующая проверка доступности bearer-токена
// Если получение токена потребовало бы ожидания, порт обязан вернуть false
type CredentialsPort interface {
	HasBearer() bool
}

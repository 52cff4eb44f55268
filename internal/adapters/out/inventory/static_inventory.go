package inventory

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
)

// StaticInventoryAdapter - инвентарь автомобилей из конфигурации
// Хосты с собственным реестром устройств подставляют свой адаптер порта
type StaticInventoryAdapter struct {
	namespace string
	serials   []string
}

func NewStaticInventoryAdapter(cfg *config.Config) *StaticInventoryAdapter {
	return &StaticInventoryAdapter{
		namespace: cfg.Vehicles.Namespace,
		serials:   append([]string(nil), cfg.Vehicles.Serials...),
	}
}

func (a *StaticInventoryAdapter) TypeIdentifier() string {
	return a.namespace
}

func (a *StaticInventoryAdapter) Serials(ctx context.Context) ([]string, error) {
	return append([]string(nil), a.serials...), nil
}

package out

import "context"

// MappingStorePort - долговременное хранилище маппинга serial -> slot_id -> ключ элемента
// Единственное состояние, обязанное пережить рестарт
type MappingStorePort interface {
	// Load читается один раз на старте, битые записи пропускаются, а не валят загрузку
	Load(ctx context.Context) (map[string]map[string]string, error)

	// Save вызывается после каждого успешного цикла применения/удаления
	Save(ctx context.Context, mappings map[string]map[string]string) error
}

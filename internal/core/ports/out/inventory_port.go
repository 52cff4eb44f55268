package out

import "context"

// VehicleInventoryPort - явный интерфейс возможностей владельца данных об автомобилях
// Вместо динамического прощупывания опциональных методов хост обязан реализовать оба
type VehicleInventoryPort interface {
	// TypeIdentifier - неймспейс устройства, входит в ключи элементов локального хранилища
	TypeIdentifier() string

	// Serials - серийные номера отслеживаемых автомобилей
	Serials(ctx context.Context) ([]string, error)
}

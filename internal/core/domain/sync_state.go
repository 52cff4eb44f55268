package domain

import "time"

// ChargeConfig - конфигурационная часть ответа облака на выборку слотов
// Неизвестные поля нам не нужны, поэтому здесь только то, что читает движок
type ChargeConfig struct {
	// Разрешено ли переключать вне-пиковые слоты для этого автомобиля
	OffPeakToggleEnabled bool `json:"offPeakToggleEnabled"`
}

// SyncState - состояние синхронизации одного автомобиля (по серийному номеру)
// Восстанавливается из облака при первой успешной выборке, между рестартами
// переживает только Mapping (через хранилище маппингов)
type SyncState struct {
	// Последние выбранные слоты по их идентификаторам
	SlotCache map[string]*Slot

	// Токен оптимистичной конкуренции, обязателен для каждого патча
	// Пустой токен означает "нужна повторная выборка перед патчем"
	ConcurrencyToken string

	// Конфигурация из последней выборки
	Config ChargeConfig

	// Маппинг slot_id -> ключ элемента локального хранилища
	Mapping map[string]string
}

func NewSyncState() *SyncState {
	return &SyncState{
		SlotCache: make(map[string]*Slot),
		Mapping:   make(map[string]string),
	}
}

// Статусы последнего цикла синхронизации для диагностики
const (
	SyncStatusOK            = "ok"
	SyncStatusDisabled      = "disabled"
	SyncStatusMissingBearer = "missing_bearer"
)

// SyncDiagnostics - снапшот состояния движка, единственный наружный сигнал об ошибках
type SyncDiagnostics struct {
	Enabled    bool      `json:"enabled"`
	LastSync   time.Time `json:"lastSync"`
	LastStatus string    `json:"lastStatus"`
	LastError  string    `json:"lastError,omitempty"`
}

// TrackedSlot - один отслеживаемый слот для слоя связывания устройств
type TrackedSlot struct {
	Serial string
	SlotID string
	Slot   *Slot
}

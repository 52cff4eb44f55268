package schedulesync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// Service - движок двусторонней синхронизации облачного расписания зарядки
// с локальным хранилищем недельных расписаний
type Service struct {
	cloudPort     out.CloudPort
	credentials   out.CredentialsPort
	storePort     out.ScheduleStorePort
	mappingPort   out.MappingStorePort
	inventoryPort out.VehicleInventoryPort
	logger        out.LoggerPort
	cfg           *config.Config
	location      *time.Location

	// Состояние по серийным номерам, диагностика и время последнего успешного цикла
	mu          sync.Mutex
	states      map[string]*domain.SyncState
	diag        domain.SyncDiagnostics
	lastSuccess time.Time

	// Single-flight замок полного цикла выборки
	refreshMu sync.Mutex

	// Запущенные обработчики уведомлений хранилища, Stop их дожидается
	handlers sync.WaitGroup

	suppression *suppressionSet
	cron        *cron.Cron
	unsubscribe func()

	// Подменяется в тестах
	now func() time.Time
}

func NewService(
	cfg *config.Config,
	cloudPort out.CloudPort,
	credentials out.CredentialsPort,
	storePort out.ScheduleStorePort,
	mappingPort out.MappingStorePort,
	inventoryPort out.VehicleInventoryPort,
	logger out.LoggerPort,
) (*Service, error) {
	location, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sync.init.bad_timezone: %w", err)
	}

	return &Service{
		cloudPort:     cloudPort,
		credentials:   credentials,
		storePort:     storePort,
		mappingPort:   mappingPort,
		inventoryPort: inventoryPort,
		logger:        logger.WithModule("ScheduleSyncService"),
		cfg:           cfg,
		location:      location,
		states:        make(map[string]*domain.SyncState),
		suppression:   newSuppressionSet(cfg.Sync.SuppressionWindow),
		diag:          domain.SyncDiagnostics{Enabled: cfg.Sync.Enabled},
		now:           time.Now,
	}, nil
}

// Start загружает маппинг, подписывается на изменения локального хранилища,
// запускает периодический опрос и выполняет немедленную первую выборку
func (s *Service) Start(ctx context.Context) error {
	mappings, err := s.mappingPort.Load(ctx)
	if err != nil {
		// Потеря маппинга не фатальна: элементы пересоздадутся при первой выборке
		s.logger.Error("sync.mapping.load_failed", out.LogFields{
			"error": err.Error(),
		})
		mappings = make(map[string]map[string]string)
	}

	s.mu.Lock()
	for serial, mapping := range mappings {
		state := s.ensureStateLocked(serial)
		for slotID, itemKey := range mapping {
			state.Mapping[slotID] = itemKey
		}
	}
	s.mu.Unlock()

	s.logger.Info("sync.started", out.LogFields{
		"serialsWithMapping": len(mappings),
		"interval":           s.cfg.Sync.Interval.String(),
	})

	// Уведомления обрабатываем на своей горутине: хранилище может дергать
	// обработчик синхронно из собственной записи движка
	s.unsubscribe = s.storePort.Subscribe(func(key string) {
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.HandleItemChanged(context.Background(), key)
		}()
	})

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+s.cfg.Sync.Interval.String(), func() {
		s.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("sync.init.cron_failed: %w", err)
	}
	s.cron.Start()

	go s.Refresh(ctx)

	return nil
}

// Stop останавливает таймер и подписки, дожидаясь завершения текущего цикла
func (s *Service) Stop() {
	if s.cron != nil {
		// Stop возвращает контекст, закрывающийся после завершения текущих задач
		<-s.cron.Stop().Done()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	// Дожидаемся начатых выталкиваний
	s.handlers.Wait()

	// Дожидаемся текущей выборки
	s.refreshMu.Lock()
	s.refreshMu.Unlock() //nolint:staticcheck // пустая критическая секция как барьер

	s.logger.Info("sync.stopped", out.LogFields{})
}

// Diagnostics возвращает снапшот состояния - единственный наружный сигнал о сбоях
func (s *Service) Diagnostics() domain.SyncDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diag
}

// LocalItemFor возвращает ключ локального элемента для слота
func (s *Service) LocalItemFor(serial, slotID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[serial]
	if !ok {
		return "", false
	}
	key, ok := state.Mapping[slotID]
	return key, ok
}

// TrackedSlots возвращает все отслеживаемые слоты в стабильном порядке
func (s *Service) TrackedSlots() []domain.TrackedSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tracked []domain.TrackedSlot
	for _, serial := range s.sortedSerialsLocked() {
		state := s.states[serial]

		slotIDs := make([]string, 0, len(state.SlotCache))
		for slotID := range state.SlotCache {
			slotIDs = append(slotIDs, slotID)
		}
		sort.Strings(slotIDs)

		for _, slotID := range slotIDs {
			tracked = append(tracked, domain.TrackedSlot{
				Serial: serial,
				SlotID: slotID,
				Slot:   state.SlotCache[slotID].Clone(),
			})
		}
	}
	return tracked
}

func (s *Service) ensureStateLocked(serial string) *domain.SyncState {
	state, ok := s.states[serial]
	if !ok {
		state = domain.NewSyncState()
		s.states[serial] = state
	}
	return state
}

func (s *Service) sortedSerialsLocked() []string {
	serials := make([]string, 0, len(s.states))
	for serial := range s.states {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	return serials
}

func (s *Service) setDiagnostics(status, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.diag = domain.SyncDiagnostics{
		Enabled:    s.cfg.Sync.Enabled,
		LastSync:   s.now(),
		LastStatus: status,
		LastError:  errText,
	}
	if status == domain.SyncStatusOK {
		s.lastSuccess = s.diag.LastSync
	}
}

// itemKey детерминированно выводит ключ локального элемента из (неймспейс, серийник, слот)
func (s *Service) itemKey(serial, slotID string) string {
	return fmt.Sprintf("%s_%s_%s",
		sanitizeKeyPart(s.inventoryPort.TypeIdentifier()),
		sanitizeKeyPart(serial),
		sanitizeKeyPart(slotID),
	)
}

// resolveItem находит (serial, slot_id) по ключу элемента: сначала прямым разбором
// ключа по кэшу слотов, затем обратным поиском по сохраненному маппингу
func (s *Service) resolveItem(key string) (serial, slotID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := sanitizeKeyPart(s.inventoryPort.TypeIdentifier()) + "_"
	if rest, found := strings.CutPrefix(key, prefix); found {
		for _, candidate := range s.sortedSerialsLocked() {
			serialPart := sanitizeKeyPart(candidate) + "_"
			slotPart, matched := strings.CutPrefix(rest, serialPart)
			if !matched {
				continue
			}
			for cachedID := range s.states[candidate].SlotCache {
				if sanitizeKeyPart(cachedID) == slotPart {
					return candidate, cachedID, true
				}
			}
		}
	}

	// Обратный поиск: маппинг хранит точные ключи
	for _, candidate := range s.sortedSerialsLocked() {
		for mappedID, mappedKey := range s.states[candidate].Mapping {
			if mappedKey == key {
				return candidate, mappedID, true
			}
		}
	}

	return "", "", false
}

// sanitizeKeyPart приводит часть ключа к нижнему регистру и заменяет
// все небуквенно-цифровые символы подчеркиванием
func sanitizeKeyPart(part string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(part) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

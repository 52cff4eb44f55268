package schedulesync

import (
	"context"
	"fmt"
	"sort"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/config"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// Refresh выполняет полный цикл выборки. Single-flight: повторный вызов
// во время работающего цикла - no-op
func (s *Service) Refresh(ctx context.Context) {
	if !s.refreshMu.TryLock() {
		s.logger.Debug("sync.refresh.already_running", out.LogFields{})
		return
	}
	defer s.refreshMu.Unlock()

	s.refresh(ctx)
}

// HandleUpstreamChanged - сигнал "данные источника изменились"
// Выборка запускается только если последний успешный цикл старше интервала,
// иначе частые обновления источника устроили бы шторм выборок
func (s *Service) HandleUpstreamChanged(ctx context.Context) {
	s.mu.Lock()
	lastSuccess := s.lastSuccess
	s.mu.Unlock()

	if !lastSuccess.IsZero() && s.now().Sub(lastSuccess) < s.cfg.Sync.Interval {
		s.logger.Debug("sync.upstream_changed.debounced", out.LogFields{
			"lastSuccess": lastSuccess,
		})
		return
	}

	s.Refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) {
	if !s.cfg.Sync.Enabled {
		s.setDiagnostics(domain.SyncStatusDisabled, "")
		return
	}

	// Проверка строго неблокирующая: если токен пришлось бы ждать,
	// цикл пропускается, а не зависает
	if !s.credentials.HasBearer() {
		s.logger.Warn("sync.refresh.missing_bearer", out.LogFields{})
		s.setDiagnostics(domain.SyncStatusMissingBearer, "")
		return
	}

	serials, err := s.inventoryPort.Serials(ctx)
	if err != nil {
		s.logger.Error("sync.refresh.serials_failed", out.LogFields{
			"error": err.Error(),
		})
		s.setDiagnostics(err.Error(), err.Error())
		return
	}

	s.logger.Info("sync.refresh.started", out.LogFields{
		"serials": len(serials),
	})

	var firstErr error
	for _, serial := range sortedCopy(serials) {
		if err := s.refreshSerial(ctx, serial); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		s.setDiagnostics(firstErr.Error(), firstErr.Error())
		return
	}

	s.setDiagnostics(domain.SyncStatusOK, "")
	s.logger.Info("sync.refresh.finished", out.LogFields{
		"serials": len(serials),
	})
}

// refreshSerial выбирает слоты одного автомобиля и применяет их к локальному хранилищу
// При ошибке выборки прежний кэш остается нетронутым
func (s *Service) refreshSerial(ctx context.Context, serial string) error {
	res, err := s.cloudPort.FetchSlots(ctx, serial)
	if err != nil {
		s.logger.Error("sync.fetch.failed", out.LogFields{
			"serial": serial,
			"error":  err.Error(),
		})
		return fmt.Errorf("sync.fetch.failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensureStateLocked(serial)
	state.ConcurrencyToken = res.ConcurrencyToken
	state.Config = res.Config

	newCache := make(map[string]*domain.Slot, len(res.Slots))
	ordinal := 0

	for _, slot := range res.Slots {
		if slot.ID == "" {
			// Слот без стабильного идентификатора непредставим в хранилище
			s.logger.Debug("sync.apply.slot_without_id", out.LogFields{
				"serial": serial,
			})
			continue
		}
		newCache[slot.ID] = slot
		ordinal++

		// Вне-пиковые слоты при выключенной видимости убираются из хранилища
		if slot.IsOffPeak() && !s.cfg.Sync.ExposeOffPeak {
			s.removeItemLocked(ctx, serial, state, slot.ID)
			continue
		}

		key := s.itemKey(serial, slot.ID)

		// Ключ, подавленный после недавней записи движка, не перезаписываем:
		// свежее состояние по нему уже в хранилище. Но подавление после
		// недавнего удаления пропускать нельзя - элемент нужно создать заново
		if s.suppression.IsSuppressed(key) {
			if existing, err := s.storePort.GetItem(ctx, key); err == nil && existing != nil {
				state.Mapping[slot.ID] = key
				continue
			}
		}

		def := SlotToHelper(slot)
		def.Name = s.displayName(slot, ordinal)

		// Подавление выставляется до записи: уведомление хранилища
		// не должно обогнать отметку
		s.suppression.Mark(key)

		if _, mapped := state.Mapping[slot.ID]; mapped {
			if err := s.storePort.UpdateItem(ctx, key, def); err != nil {
				// Элемент могли удалить из хранилища в обход движка - создаем заново
				if createErr := s.storePort.CreateItem(ctx, key, def); createErr != nil {
					s.logger.Error("sync.apply.update_failed", out.LogFields{
						"serial": serial,
						"slotId": slot.ID,
						"error":  err.Error(),
					})
					continue
				}
			}
		} else {
			if err := s.storePort.CreateItem(ctx, key, def); err != nil {
				s.logger.Error("sync.apply.create_failed", out.LogFields{
					"serial": serial,
					"slotId": slot.ID,
					"error":  err.Error(),
				})
				continue
			}
		}
		state.Mapping[slot.ID] = key
	}

	// Слоты, исчезнувшие из выборки, удаляются вместе с записью маппинга
	for slotID := range state.Mapping {
		if _, present := newCache[slotID]; !present {
			s.removeItemLocked(ctx, serial, state, slotID)
		}
	}

	state.SlotCache = newCache

	if err := s.mappingPort.Save(ctx, s.snapshotMappingsLocked()); err != nil {
		s.logger.Error("sync.mapping.save_failed", out.LogFields{
			"error": err.Error(),
		})
	}

	s.logger.Debug("sync.apply.finished", out.LogFields{
		"serial": serial,
		"slots":  len(newCache),
	})

	return nil
}

func (s *Service) removeItemLocked(ctx context.Context, serial string, state *domain.SyncState, slotID string) {
	key, mapped := state.Mapping[slotID]
	if !mapped {
		return
	}

	s.suppression.Mark(key)
	if err := s.storePort.DeleteItem(ctx, key); err != nil {
		s.logger.Error("sync.apply.delete_failed", out.LogFields{
			"serial": serial,
			"slotId": slotID,
			"error":  err.Error(),
		})
		return
	}
	delete(state.Mapping, slotID)
}

func (s *Service) snapshotMappingsLocked() map[string]map[string]string {
	snapshot := make(map[string]map[string]string, len(s.states))
	for serial, state := range s.states {
		if len(state.Mapping) == 0 {
			continue
		}
		mapping := make(map[string]string, len(state.Mapping))
		for slotID, key := range state.Mapping {
			mapping[slotID] = key
		}
		snapshot[serial] = mapping
	}
	return snapshot
}

// displayName собирает отображаемое имя элемента по выбранному стилю
// Для слотов без времени всегда используется нумерованный запасной вариант
func (s *Service) displayName(slot *domain.Slot, ordinal int) string {
	style := s.cfg.Sync.NamingStyle
	if slot.StartTime == nil || slot.EndTime == nil {
		style = config.NamingStyleNumbered
	}

	switch style {
	case config.NamingStyleTimeWindow:
		return fmt.Sprintf("Charge %s - %s", slot.StartTime, slot.EndTime)
	case config.NamingStyleTypeTimeWindow:
		return fmt.Sprintf("%s %s - %s", slot.ScheduleType, slot.StartTime, slot.EndTime)
	default:
		return fmt.Sprintf("Charge schedule %d", ordinal)
	}
}

func sortedCopy(values []string) []string {
	copied := append([]string(nil), values...)
	sort.Strings(copied)
	return copied
}

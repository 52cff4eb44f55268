package schedulesync

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// SetSlotEnabled - тонкий путь патча включения/выключения слота
// У вне-пиковых слотов время не редактируется, но тумблер доступен,
// если конфигурация последней выборки это разрешает; иначе запрос молча бросается
func (s *Service) SetSlotEnabled(ctx context.Context, serial, slotID string, enabled bool) {
	s.mu.Lock()
	state, ok := s.states[serial]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("sync.toggle.unknown_serial", out.LogFields{
			"serial": serial,
		})
		return
	}

	cached := state.SlotCache[slotID]
	if cached == nil {
		s.mu.Unlock()
		s.logger.Debug("sync.toggle.unknown_slot", out.LogFields{
			"serial": serial,
			"slotId": slotID,
		})
		return
	}

	if cached.IsOffPeak() && !state.Config.OffPeakToggleEnabled {
		s.mu.Unlock()
		s.logger.Debug("sync.toggle.off_peak_not_eligible", out.LogFields{
			"serial": serial,
			"slotId": slotID,
		})
		return
	}

	patch := cached.Clone()
	patch.Enabled = enabled
	itemKey, mapped := state.Mapping[slotID]
	token := state.ConcurrencyToken
	s.mu.Unlock()

	if token == "" {
		if err := s.acquireToken(ctx, serial); err != nil {
			s.logger.Error("sync.toggle.token_fetch_failed", out.LogFields{
				"serial": serial,
				"error":  err.Error(),
			})
		}
		token = s.currentToken(serial)
	}
	if token == "" {
		s.logger.Warn("sync.toggle.abandoned_no_token", out.LogFields{
			"serial": serial,
			"slotId": slotID,
		})
		return
	}

	res, err := s.cloudPort.PatchSlots(ctx, serial, token, []*domain.Slot{patch})
	if err != nil {
		// Локальное хранилище не менялось, откатывать нечего
		s.logger.Error("sync.toggle.failed", out.LogFields{
			"serial": serial,
			"slotId": slotID,
			"error":  err.Error(),
		})
		return
	}

	s.mu.Lock()
	state.ConcurrencyToken = res.ConcurrencyToken
	state.SlotCache[slotID] = patch
	s.mu.Unlock()

	// Отражаем новый флаг в локальном элементе, через окно подавления
	if mapped {
		def, err := s.storePort.GetItem(ctx, itemKey)
		if err != nil || def == nil {
			return
		}
		def.Enabled = enabled

		s.suppression.Mark(itemKey)
		if err := s.storePort.UpdateItem(ctx, itemKey, def); err != nil {
			s.logger.Error("sync.toggle.store_update_failed", out.LogFields{
				"key":   itemKey,
				"error": err.Error(),
			})
		}
	}

	s.logger.Info("sync.toggle.succeeded", out.LogFields{
		"serial":  serial,
		"slotId":  slotID,
		"enabled": enabled,
	})
}

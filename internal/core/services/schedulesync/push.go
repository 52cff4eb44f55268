package schedulesync

import (
	"context"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// HandleItemChanged обрабатывает уведомление "элемент локального хранилища изменился"
// Эхо собственных записей движка отбрасывается окном подавления,
// остальное трактуется как правка пользователя и выталкивается в облако
func (s *Service) HandleItemChanged(ctx context.Context, key string) {
	if s.suppression.IsSuppressed(key) {
		s.logger.Debug("sync.item_changed.suppressed", out.LogFields{
			"key": key,
		})
		return
	}

	serial, slotID, ok := s.resolveItem(key)
	if !ok {
		s.logger.Debug("sync.item_changed.unknown_item", out.LogFields{
			"key": key,
		})
		return
	}

	s.mu.Lock()
	state := s.states[serial]
	cached := state.SlotCache[slotID]
	var prev *domain.Slot
	if cached != nil {
		prev = cached.Clone()
	}
	s.mu.Unlock()

	// Вне-пиковый слот или слот без границ времени в облако не выталкивается
	if prev == nil || !prev.IsTimeEditable() {
		s.logger.Debug("sync.item_changed.not_pushable", out.LogFields{
			"serial": serial,
			"slotId": slotID,
		})
		return
	}

	def, err := s.storePort.GetItem(ctx, key)
	if err != nil {
		s.logger.Error("sync.push.read_item_failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if def == nil {
		return
	}

	patch := HelperToSlot(def, prev, s.location, s.now(), s.logger)
	if patch == nil {
		return
	}

	s.pushPatch(ctx, serial, slotID, key, patch, prev, def.Name)
}

// pushPatch отправляет патч с токеном конкуренции, при неудаче откатывая
// локальный элемент к последнему известному состоянию облака
func (s *Service) pushPatch(ctx context.Context, serial, slotID, key string, patch, prev *domain.Slot, itemName string) {
	token := s.currentToken(serial)
	if token == "" {
		// Принудительная выборка ради токена, локальное хранилище не трогаем
		if err := s.acquireToken(ctx, serial); err != nil {
			s.logger.Error("sync.push.token_fetch_failed", out.LogFields{
				"serial": serial,
				"error":  err.Error(),
			})
		}
		token = s.currentToken(serial)
	}
	if token == "" {
		// Токен угадывать нельзя - патч бросаем
		s.logger.Warn("sync.push.abandoned_no_token", out.LogFields{
			"serial": serial,
			"slotId": slotID,
		})
		return
	}

	res, err := s.cloudPort.PatchSlots(ctx, serial, token, []*domain.Slot{patch})
	if err != nil {
		s.logger.Error("sync.push.failed", out.LogFields{
			"serial": serial,
			"slotId": slotID,
			"error":  err.Error(),
		})
		s.revertItem(ctx, key, prev, itemName)
		return
	}

	s.mu.Lock()
	state := s.ensureStateLocked(serial)
	state.ConcurrencyToken = res.ConcurrencyToken
	state.SlotCache[slotID] = patch
	s.mu.Unlock()

	s.logger.Info("sync.push.succeeded", out.LogFields{
		"serial": serial,
		"slotId": slotID,
	})
}

// revertItem возвращает элементу последнее известное состояние облака,
// чтобы локальное представление не расходилось с реальным после неудачного патча
func (s *Service) revertItem(ctx context.Context, key string, prev *domain.Slot, itemName string) {
	def := SlotToHelper(prev)
	def.Name = itemName

	s.suppression.Mark(key)
	if err := s.storePort.UpdateItem(ctx, key, def); err != nil {
		s.logger.Error("sync.push.revert_failed", out.LogFields{
			"key":   key,
			"error": err.Error(),
		})
		return
	}

	s.logger.Warn("sync.push.reverted", out.LogFields{
		"key": key,
	})
}

func (s *Service) currentToken(serial string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[serial]
	if !ok {
		return ""
	}
	return state.ConcurrencyToken
}

// acquireToken выбирает слоты только ради токена и обновления кэша,
// без применения к локальному хранилищу: текущая правка пользователя
// не должна быть затерта перед самой отправкой
func (s *Service) acquireToken(ctx context.Context, serial string) error {
	res, err := s.cloudPort.FetchSlots(ctx, serial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.ensureStateLocked(serial)
	state.ConcurrencyToken = res.ConcurrencyToken
	state.Config = res.Config

	return nil
}

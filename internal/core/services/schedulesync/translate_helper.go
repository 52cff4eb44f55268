package schedulesync

import (
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/json_types"
)

// SlotToHelper переводит один облачный слот в подневное определение
// для локального хранилища недельных расписаний
//
// Слот без редактируемого времени (вне-пиковый, без id или с незаданной границей)
// дает определение без диапазонов - такой слот представим только тумблером
func SlotToHelper(slot *domain.Slot) *domain.HelperDefinition {
	def := &domain.HelperDefinition{
		Days:         make(map[int][]domain.HelperRange),
		ReadOnly:     slot.IsOffPeak() || slot.StartTime == nil || slot.EndTime == nil,
		ScheduleType: slot.ScheduleType,
		Enabled:      slot.Enabled,
	}

	if def.ReadOnly || slot.ID == "" {
		return def
	}

	start := *slot.StartTime
	end := *slot.EndTime

	// Ночной слот: конец не позже начала, окно переходит через полночь
	overnight := !start.Before(end)

	for _, day := range slot.SortedDays() {
		// Некорректный день недели отбрасываем, остальные обрабатываем
		if day < 1 || day > 7 {
			continue
		}

		if !overnight {
			def.Days[day] = append(def.Days[day], helperRange(slot, start, end))
			continue
		}

		// Ночной слот разрезается: выбранный день до конца суток...
		def.Days[day] = append(def.Days[day], helperRange(slot, start, json_types.EndOfDay()))

		// ...и следующий день от начала суток до конца окна
		// Если конец ровно в полночь, фрагмент следующего дня не нужен
		if end.DaySeconds() == 0 {
			continue
		}
		next := day%7 + 1
		def.Days[next] = append(def.Days[next], helperRange(slot, json_types.NewClockTime(0, 0, 0), end))
	}

	return def
}

func helperRange(slot *domain.Slot, from, to json_types.ClockTime) domain.HelperRange {
	data := map[string]interface{}{
		domain.HelperDataSlotID:       slot.ID,
		domain.HelperDataScheduleType: string(slot.ScheduleType),
		domain.HelperDataReadOnly:     slot.IsOffPeak(),
	}
	if slot.RemindFlag && slot.RemindTime > 0 {
		data[domain.HelperDataReminderMinutes] = slot.RemindTime
	}

	return domain.HelperRange{
		From: from.StringWithSeconds(),
		To:   to.StringWithSeconds(),
		Data: data,
	}
}

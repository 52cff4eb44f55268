package schedulesync

import (
	"sort"
	"time"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/json_types"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// blockTuple - один разобранный диапазон фрагмента с днем недели
type blockTuple struct {
	day   int
	start json_types.ClockTime
	end   json_types.ClockTime
	data  map[string]interface{}
}

// HelperToSlot собирает патч слота из отредактированного пользователем фрагмента
// Последний известный слот служит источником значений по умолчанию и сквозных полей
// Возвращает nil, если во фрагменте нет ни одного диапазона (патчить нечего)
func HelperToSlot(
	def *domain.HelperDefinition,
	prev *domain.Slot,
	location *time.Location,
	now time.Time,
	logger out.LoggerPort,
) *domain.Slot {
	tuples := collectTuples(def)
	if len(tuples) == 0 {
		return nil
	}

	// Сортировка по (день, начало) фиксирует порядок политики "первый выигрывает"
	sort.SliceStable(tuples, func(i, j int) bool {
		if tuples[i].day != tuples[j].day {
			return tuples[i].day < tuples[j].day
		}
		return tuples[i].start.Before(tuples[j].start)
	})

	start, end, days, overnight := detectOvernight(tuples)
	if !overnight {
		start, end, days = collapseFirstWins(tuples, logger)
	}

	if len(days) == 0 {
		return nil
	}

	patch := prev.Clone()
	patch.StartTime = &start
	patch.EndTime = &end
	patch.Days = days
	patch.Enabled = def.Enabled

	applyReminder(patch, tuples, prev, location, now)
	applyPatchDefaults(patch)

	return patch
}

// collectTuples разворачивает фрагмент в плоский список диапазонов
// Диапазоны с нечитаемыми временами отбрасываются, а не считаются ошибкой
func collectTuples(def *domain.HelperDefinition) []blockTuple {
	var tuples []blockTuple
	for day := 1; day <= 7; day++ {
		for _, r := range def.Days[day] {
			start := json_types.ParseClockTime(r.From)
			end := json_types.ParseClockTime(r.To)
			if start == nil || end == nil {
				continue
			}
			tuples = append(tuples, blockTuple{
				day:   day,
				start: *start,
				end:   *end,
				data:  r.Data,
			})
		}
	}
	return tuples
}

// detectOvernight проверяет, складывается ли набор диапазонов ровно в один ночной слот:
// "поздние" диапазоны заканчиваются в конце суток, "ранние" начинаются в начале,
// группы строго разбивают весь набор, поздние делят одно начало, ранние - один конец,
// и за каждым поздним днем следует ранний день (с переносом 7 -> 1)
func detectOvernight(tuples []blockTuple) (start, end json_types.ClockTime, days []int, ok bool) {
	var late, early []blockTuple
	for _, t := range tuples {
		endsAtDayEnd := t.end.IsEndOfDay()
		startsAtDayStart := t.start.DaySeconds() == 0

		// Диапазон на все сутки не относится ни к одной группе однозначно
		if endsAtDayEnd == startsAtDayStart {
			return start, end, nil, false
		}
		if endsAtDayEnd {
			late = append(late, t)
		} else {
			early = append(early, t)
		}
	}

	if len(late) == 0 || len(early) == 0 {
		return start, end, nil, false
	}

	// Все поздние диапазоны обязаны делить одно время начала
	start = late[0].start
	for _, t := range late[1:] {
		if !t.start.Equal(start) {
			return start, end, nil, false
		}
	}

	// Все ранние диапазоны обязаны делить одно время конца
	end = early[0].end
	for _, t := range early[1:] {
		if !t.end.Equal(end) {
			return start, end, nil, false
		}
	}

	earlyDays := make(map[int]bool, len(early))
	for _, t := range early {
		earlyDays[t.day] = true
	}

	for _, t := range late {
		if !earlyDays[t.day%7+1] {
			return start, end, nil, false
		}
		days = append(days, t.day)
	}
	sort.Ints(days)

	return start, end, days, true
}

// collapseFirstWins сводит неоднозначный набор диапазонов к окну первого диапазона
// Несовпадающие диапазоны молча отбрасываются с предупреждением - облако
// поддерживает только одно временное окно на слот
func collapseFirstWins(tuples []blockTuple, logger out.LoggerPort) (start, end json_types.ClockTime, days []int) {
	first := tuples[0]
	start = first.start
	end = first.end

	var dropped int
	seen := make(map[int]bool)
	for _, t := range tuples {
		if !t.start.Equal(start) || !t.end.Equal(end) {
			dropped++
			continue
		}
		if !seen[t.day] {
			seen[t.day] = true
			days = append(days, t.day)
		}
	}
	sort.Ints(days)

	if dropped > 0 && logger != nil {
		logger.Warn("translate.helper_to_slot.ranges_dropped", out.LogFields{
			"kept":    first.start.String() + "-" + first.end.String(),
			"dropped": dropped,
		})
	}

	return start, end, days
}

// applyReminder выбирает минуты напоминания и вычисляет reminderTimeUtc
// Минуты берутся из первого диапазона с положительным reminder_minutes,
// иначе сохраняется напоминание прошлого слота, иначе напоминание сбрасывается
func applyReminder(patch *domain.Slot, tuples []blockTuple, prev *domain.Slot, location *time.Location, now time.Time) {
	minutes := 0
	for _, t := range tuples {
		if m, ok := positiveInt(t.data[domain.HelperDataReminderMinutes]); ok {
			minutes = m
			break
		}
	}
	if minutes == 0 && prev.RemindFlag && prev.RemindTime > 0 {
		minutes = prev.RemindTime
	}

	if minutes == 0 {
		patch.RemindFlag = false
		patch.RemindTime = 0
		patch.ReminderTimeUtc = ""
		return
	}

	patch.RemindFlag = true
	patch.RemindTime = minutes

	// Сегодняшняя дата + начало слота в локальной таймзоне, минус минуты, в UTC
	// Сентинел "конец суток" для этой комбинации считается началом суток
	startSeconds := patch.StartTime.DaySeconds()
	if patch.StartTime.IsEndOfDay() {
		startSeconds = 0
	}

	localDay := now.In(location)
	localStart := time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, location).
		Add(time.Duration(startSeconds) * time.Second)
	remindAt := localStart.Add(-time.Duration(minutes) * time.Minute).UTC()

	patch.ReminderTimeUtc = remindAt.Format("15:04")
}

// applyPatchDefaults дозаполняет поля, которые облако требует в патче,
// но только если их не было в закэшированном слоте
func applyPatchDefaults(patch *domain.Slot) {
	defaults := map[string]string{
		domain.SlotFieldChargeLevelType: domain.DefaultChargeLevelType,
		domain.SlotFieldRecurringKind:   domain.DefaultRecurringKind,
		domain.SlotFieldSourceType:      domain.DefaultSourceType,
	}
	for field, value := range defaults {
		if _, ok := patch.Extra[field]; !ok {
			patch.SetExtraString(field, value)
		}
	}
}

// positiveInt приводит непрозрачное значение метаданных к положительному целому
// Числа из json/yaml приходят как int, int64, uint64 или float64
func positiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case int64:
		if v > 0 {
			return int(v), true
		}
	case uint64:
		if v > 0 {
			return int(v), true
		}
	case float64:
		if v > 0 && v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

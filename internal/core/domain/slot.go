package domain

import (
	"encoding/json"
	"sort"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/json_types"
)

type ScheduleType string

const (
	// Обычный пользовательский слот, время редактируется
	ScheduleTypeCustom ScheduleType = "CUSTOM"
	// Слот, управляемый поставщиком (тариф "вне пика"), время только для чтения
	ScheduleTypeOffPeak ScheduleType = "OFF_PEAK"
)

// Дефолтные значения полей, которые облако требует в патче,
// но которые могут отсутствовать в закэшированном слоте
const (
	DefaultChargeLevelType = "FULL"
	DefaultRecurringKind   = "WEEKLY"
	DefaultSourceType      = "CLOUD"
)

// Ключи известных полей слота на проводе
const (
	slotFieldID              = "id"
	slotFieldStartTime       = "startTime"
	slotFieldEndTime         = "endTime"
	slotFieldDays            = "days"
	slotFieldScheduleType    = "scheduleType"
	slotFieldEnabled         = "enabled"
	slotFieldRemindFlag      = "remindFlag"
	slotFieldRemindTime      = "remindTime"
	slotFieldReminderTimeUtc = "reminderTimeUtc"

	SlotFieldChargeLevelType = "chargeLevelType"
	SlotFieldRecurringKind   = "recurringKind"
	SlotFieldSourceType      = "sourceType"
)

// Slot - одна запись повторяющегося окна зарядки в облачной модели
// Неизвестные поля сохраняются байт-в-байт и проходят через трансляцию без изменений
type Slot struct {
	ID           string
	StartTime    *json_types.ClockTime
	EndTime      *json_types.ClockTime
	Days         []int
	ScheduleType ScheduleType
	Enabled      bool
	RemindFlag   bool
	RemindTime   int

	// Вычисляется при сборке патча, в ответах облака обычно отсутствует
	ReminderTimeUtc string

	// Сквозные поля, не входящие в известный набор
	Extra map[string]json.RawMessage
}

// IsOffPeak - слот, управляемый поставщиком, его время не редактируется локально
func (s *Slot) IsOffPeak() bool {
	return s.ScheduleType == ScheduleTypeOffPeak
}

// IsTimeEditable - у слота заданы обе границы времени и он не вне-пиковый
func (s *Slot) IsTimeEditable() bool {
	return !s.IsOffPeak() && s.StartTime != nil && s.EndTime != nil
}

// Clone возвращает глубокую копию слота
func (s *Slot) Clone() *Slot {
	cp := *s
	if s.StartTime != nil {
		st := *s.StartTime
		cp.StartTime = &st
	}
	if s.EndTime != nil {
		et := *s.EndTime
		cp.EndTime = &et
	}
	cp.Days = append([]int(nil), s.Days...)
	if s.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type fields struct {
		ID              string       `json:"id"`
		ScheduleType    ScheduleType `json:"scheduleType"`
		Enabled         bool         `json:"enabled"`
		RemindFlag      bool         `json:"remindFlag"`
		RemindTime      int          `json:"remindTime"`
		ReminderTimeUtc string       `json:"reminderTimeUtc"`
	}

	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}

	*s = Slot{
		ID: f.ID,
		// Границы времени и дни парсим мягко: некорректное значение означает
		// "не задано", а не ошибку десериализации всего слота
		StartTime:       parseClockTimeRaw(raw[slotFieldStartTime]),
		EndTime:         parseClockTimeRaw(raw[slotFieldEndTime]),
		Days:            parseDaysRaw(raw[slotFieldDays]),
		ScheduleType:    f.ScheduleType,
		Enabled:         f.Enabled,
		RemindFlag:      f.RemindFlag,
		RemindTime:      f.RemindTime,
		ReminderTimeUtc: f.ReminderTimeUtc,
	}

	// Все неизвестные поля откладываем как есть
	for _, known := range []string{
		slotFieldID, slotFieldStartTime, slotFieldEndTime, slotFieldDays,
		slotFieldScheduleType, slotFieldEnabled, slotFieldRemindFlag,
		slotFieldRemindTime, slotFieldReminderTimeUtc,
	} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		s.Extra = raw
	}

	return nil
}

// parseDaysRaw разбирает список дней недели
// Значение не-список дает пустой список, нечисловые элементы пропускаются
func parseDaysRaw(raw json.RawMessage) []int {
	if raw == nil {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var days []int
	for _, entry := range entries {
		var day int
		if err := json.Unmarshal(entry, &day); err != nil {
			continue
		}
		days = append(days, day)
	}
	return days
}

func parseClockTimeRaw(raw json.RawMessage) *json_types.ClockTime {
	if raw == nil {
		return nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil
	}
	return json_types.ParseClockTime(str)
}

func (s Slot) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+12)
	for k, v := range s.Extra {
		out[k] = v
	}

	put := func(key string, value interface{}) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}

	if err := put(slotFieldID, s.ID); err != nil {
		return nil, err
	}
	if err := put(slotFieldStartTime, s.StartTime); err != nil {
		return nil, err
	}
	if err := put(slotFieldEndTime, s.EndTime); err != nil {
		return nil, err
	}
	if err := put(slotFieldDays, s.Days); err != nil {
		return nil, err
	}
	if err := put(slotFieldScheduleType, s.ScheduleType); err != nil {
		return nil, err
	}
	if err := put(slotFieldEnabled, s.Enabled); err != nil {
		return nil, err
	}
	if err := put(slotFieldRemindFlag, s.RemindFlag); err != nil {
		return nil, err
	}
	if err := put(slotFieldRemindTime, s.RemindTime); err != nil {
		return nil, err
	}
	if s.ReminderTimeUtc != "" {
		if err := put(slotFieldReminderTimeUtc, s.ReminderTimeUtc); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// ExtraString возвращает строковое сквозное поле, если оно есть
func (s *Slot) ExtraString(key string) (string, bool) {
	raw, ok := s.Extra[key]
	if !ok {
		return "", false
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return "", false
	}
	return str, true
}

// SetExtraString выставляет строковое сквозное поле
func (s *Slot) SetExtraString(key, value string) {
	if s.Extra == nil {
		s.Extra = make(map[string]json.RawMessage)
	}
	data, _ := json.Marshal(value)
	s.Extra[key] = data
}

// SortedDays возвращает отсортированную копию дней недели слота
func (s *Slot) SortedDays() []int {
	days := append([]int(nil), s.Days...)
	sort.Ints(days)
	return days
}

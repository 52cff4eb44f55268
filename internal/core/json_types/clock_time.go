package json_types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Секунда, соответствующая максимальному представимому времени суток (23:59:59)
const maxDaySecond = 23*3600 + 59*60 + 59

// ClockTime - время суток без даты и таймзоны, как его отдает облако
// Значение хранится в секундах от начала суток, конец суток - отдельный сентинел
type ClockTime struct {
	second   int
	endOfDay bool
}

// EndOfDay - сентинел "конец суток", на проводе он передается как "00:00"
func EndOfDay() ClockTime {
	return ClockTime{second: 24 * 3600, endOfDay: true}
}

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime{second: hour*3600 + minute*60 + second}
}

// ParseClockTime парсит "HH:MM" или "HH:MM:SS[.ffffff]"
// Дробные секунды отбрасываются, максимальное время суток приводится к сентинелу
// При любом некорректном входе возвращается nil - для вызывающих это "время не задано"
func ParseClockTime(str string) *ClockTime {
	if dot := strings.IndexByte(str, '.'); dot != -1 {
		// Проверяем что дробная часть состоит из цифр, после чего отбрасываем ее
		frac := str[dot+1:]
		if frac == "" || strings.IndexFunc(frac, func(r rune) bool { return r < '0' || r > '9' }) != -1 {
			return nil
		}
		str = str[:dot]
	}

	parts := strings.Split(str, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil
	}

	var hour, minute, second int
	if !parseTwoDigits(parts[0], &hour) || !parseTwoDigits(parts[1], &minute) {
		return nil
	}
	if len(parts) == 3 && !parseTwoDigits(parts[2], &second) {
		return nil
	}

	if hour > 23 || minute > 59 || second > 59 {
		return nil
	}

	t := NewClockTime(hour, minute, second)
	if t.second == maxDaySecond {
		t = EndOfDay()
	}

	return &t
}

func parseTwoDigits(str string, out *int) bool {
	if len(str) != 2 || str[0] < '0' || str[0] > '9' || str[1] < '0' || str[1] > '9' {
		return false
	}
	*out = int(str[0]-'0')*10 + int(str[1]-'0')
	return true
}

// IsEndOfDay - true для сентинела и для буквального максимального времени суток
func (t ClockTime) IsEndOfDay() bool {
	return t.endOfDay || t.second >= maxDaySecond
}

// DaySeconds - секунда от начала суток, для сентинела возвращает 86400
func (t ClockTime) DaySeconds() int {
	return t.second
}

func (t ClockTime) Hour() int {
	return t.second / 3600
}

func (t ClockTime) Minute() int {
	return (t.second % 3600) / 60
}

// Before сравнивает времена суток, сентинел всегда позже любого другого времени
func (t ClockTime) Before(other ClockTime) bool {
	return t.second < other.second
}

func (t ClockTime) Equal(other ClockTime) bool {
	return t.second == other.second
}

// String форматирует в "HH:MM"
// Сентинел на проводе передается как "00:00" (соглашение "до полуночи"), никогда как "23:59"
func (t ClockTime) String() string {
	if t.IsEndOfDay() {
		return "00:00"
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// StringWithSeconds форматирует в "HH:MM:SS", используется локальным хранилищем расписаний
// Сентинел здесь записывается как максимальное время суток, чтобы обратный парсинг
// снова дал сентинел (в отличие от облачного формата "00:00")
func (t ClockTime) StringWithSeconds() string {
	if t.IsEndOfDay() {
		return "23:59:59"
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.second%60)
}

func (t *ClockTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	// Убираем кавычки вокруг строки
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("failed to parse clock time: %s", string(data))
	}
	str := string(data[1 : len(data)-1])

	parsed := ParseClockTime(str)
	if parsed == nil {
		return fmt.Errorf("failed to parse clock time: %s", str)
	}

	*t = *parsed
	return nil
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

package schedulesync

import (
	"sync"
	"testing"
	"time"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// recordingLogger копит события по уровням, чтобы тесты могли их проверять
type recordingLogger struct {
	mu     sync.Mutex
	events map[out.LogLevel][]string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{events: make(map[out.LogLevel][]string)}
}

func (l *recordingLogger) record(level out.LogLevel, event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[level] = append(l.events[level], event)
}

func (l *recordingLogger) has(level out.LogLevel, event string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events[level] {
		if e == event {
			return true
		}
	}
	return false
}

func (l *recordingLogger) Debug(event string, fields out.LogFields) {
	l.record(out.LogLevelDebug, event)
}

func (l *recordingLogger) Info(event string, fields out.LogFields) {
	l.record(out.LogLevelInfo, event)
}

func (l *recordingLogger) Warn(event string, fields out.LogFields) {
	l.record(out.LogLevelWarn, event)
}

func (l *recordingLogger) Error(event string, fields out.LogFields) {
	l.record(out.LogLevelError, event)
}
func (l *recordingLogger) WithFields(fields out.LogFields) out.LoggerPort { return l }
func (l *recordingLogger) WithModule(module string) out.LoggerPort { return l }

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestHelperToSlot_RoundTrip(t *testing.T) {
	original := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:30"),
		Days:         []int{2, 4},
		ScheduleType: domain.ScheduleTypeCustom,
		Enabled:      true,
	}

	def := SlotToHelper(original)
	patch := HelperToSlot(def, original, time.UTC, testNow, newRecordingLogger())

	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if !patch.StartTime.Equal(*original.StartTime) || !patch.EndTime.Equal(*original.EndTime) {
		t.Errorf("times must survive the round trip, got %s-%s", patch.StartTime.String(), patch.EndTime.String())
	}
	if len(patch.Days) != 2 || patch.Days[0] != 2 || patch.Days[1] != 4 {
		t.Errorf("days must survive the round trip, got %v", patch.Days)
	}
	if !patch.Enabled {
		t.Error("enabled flag must survive the round trip")
	}
}

func TestHelperToSlot_OvernightRecombine(t *testing.T) {
	original := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "23:00"),
		EndTime:      clock(t, "06:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
		Enabled:      true,
	}

	// Разрез на два дня обязан собраться обратно в исходный ночной слот
	def := SlotToHelper(original)
	patch := HelperToSlot(def, original, time.UTC, testNow, newRecordingLogger())

	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if patch.StartTime.String() != "23:00" || patch.EndTime.String() != "06:00" {
		t.Errorf("expected 23:00-06:00, got %s-%s", patch.StartTime.String(), patch.EndTime.String())
	}
	if len(patch.Days) != 1 || patch.Days[0] != 1 {
		t.Errorf("expected days [1], got %v", patch.Days)
	}
}

func TestHelperToSlot_OvernightWrapFromSunday(t *testing.T) {
	original := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "22:00"),
		EndTime:      clock(t, "05:00"),
		Days:         []int{6, 7},
		ScheduleType: domain.ScheduleTypeCustom,
		Enabled:      true,
	}

	def := SlotToHelper(original)
	patch := HelperToSlot(def, original, time.UTC, testNow, newRecordingLogger())

	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if len(patch.Days) != 2 || patch.Days[0] != 6 || patch.Days[1] != 7 {
		t.Errorf("expected days [6 7], got %v", patch.Days)
	}
}

func TestHelperToSlot_AmbiguousFirstWins(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
		Enabled:      true,
	}

	// Пользователь нарисовал разные окна в разные дни - облако такого не умеет
	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			1: {{From: "08:00:00", To: "09:00:00"}},
			3: {{From: "10:00:00", To: "12:00:00"}},
			5: {{From: "08:00:00", To: "09:00:00"}},
		},
		ScheduleType: domain.ScheduleTypeCustom,
		Enabled:      true,
	}

	log := newRecordingLogger()
	patch := HelperToSlot(def, prev, time.UTC, testNow, log)

	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if patch.StartTime.String() != "08:00" || patch.EndTime.String() != "09:00" {
		t.Errorf("first window must win, got %s-%s", patch.StartTime.String(), patch.EndTime.String())
	}
	if len(patch.Days) != 2 || patch.Days[0] != 1 || patch.Days[1] != 5 {
		t.Errorf("only matching days must survive, got %v", patch.Days)
	}
	if !log.has(out.LogLevelWarn, "translate.helper_to_slot.ranges_dropped") {
		t.Error("dropped ranges must be logged as a warning")
	}
}

func TestHelperToSlot_EmptyDefinition(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
	}

	def := &domain.HelperDefinition{
		Days:    map[int][]domain.HelperRange{},
		Enabled: true,
	}

	if patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger()); patch != nil {
		t.Errorf("expected nil patch for an empty definition, got %v", patch)
	}
}

func TestHelperToSlot_UnparseableRangesDropped(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
	}

	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			2: {{From: "bogus", To: "09:00:00"}},
			4: {{From: "10:00:00", To: "11:00:00"}},
		},
		Enabled: true,
	}

	patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger())
	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if len(patch.Days) != 1 || patch.Days[0] != 4 {
		t.Errorf("only the readable range must survive, got %v", patch.Days)
	}
}

func TestHelperToSlot_ReminderCrossesMidnight(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "00:05"),
		EndTime:      clock(t, "01:00"),
		Days:         []int{3},
		ScheduleType: domain.ScheduleTypeCustom,
	}

	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			3: {{
				From: "00:05:00",
				To:   "01:00:00",
				Data: map[string]interface{}{
					domain.HelperDataReminderMinutes: 10,
				},
			}},
		},
		Enabled: true,
	}

	patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger())
	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if !patch.RemindFlag || patch.RemindTime != 10 {
		t.Errorf("expected remind 10 minutes, got flag=%v time=%d", patch.RemindFlag, patch.RemindTime)
	}
	// 00:05 минус 10 минут переходит через полночь
	if patch.ReminderTimeUtc != "23:55" {
		t.Errorf("expected reminderTimeUtc 23:55, got %q", patch.ReminderTimeUtc)
	}
}

func TestHelperToSlot_ReminderFromYamlFloat(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
	}

	// Числа из json приходят как float64
	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			1: {{
				From: "08:00:00",
				To:   "09:00:00",
				Data: map[string]interface{}{
					domain.HelperDataReminderMinutes: float64(25),
				},
			}},
		},
		Enabled: true,
	}

	patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger())
	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if patch.RemindTime != 25 {
		t.Errorf("expected remind 25 minutes, got %d", patch.RemindTime)
	}
	if patch.ReminderTimeUtc != "07:35" {
		t.Errorf("expected reminderTimeUtc 07:35, got %q", patch.ReminderTimeUtc)
	}
}

func TestHelperToSlot_ReminderClearedWithoutMinutes(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
	}

	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			1: {{From: "08:00:00", To: "09:00:00"}},
		},
		Enabled: true,
	}

	patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger())
	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}
	if patch.RemindFlag || patch.RemindTime != 0 || patch.ReminderTimeUtc != "" {
		t.Errorf("reminder must be cleared, got flag=%v time=%d utc=%q",
			patch.RemindFlag, patch.RemindTime, patch.ReminderTimeUtc)
	}
}

func TestHelperToSlot_PatchDefaultsFilled(t *testing.T) {
	prev := &domain.Slot{
		ID:           "s1",
		StartTime:    clock(t, "08:00"),
		EndTime:      clock(t, "09:00"),
		Days:         []int{1},
		ScheduleType: domain.ScheduleTypeCustom,
	}
	prev.SetExtraString(domain.SlotFieldChargeLevelType, "PARTIAL")

	def := &domain.HelperDefinition{
		Days: map[int][]domain.HelperRange{
			1: {{From: "08:00:00", To: "09:00:00"}},
		},
		Enabled: true,
	}

	patch := HelperToSlot(def, prev, time.UTC, testNow, newRecordingLogger())
	if patch == nil {
		t.Fatal("expected a patch, got nil")
	}

	// Уже известное значение не перетирается дефолтом
	if got, _ := patch.ExtraString(domain.SlotFieldChargeLevelType); got != "PARTIAL" {
		t.Errorf("cached chargeLevelType must be kept, got %q", got)
	}
	if got, _ := patch.ExtraString(domain.SlotFieldRecurringKind); got != domain.DefaultRecurringKind {
		t.Errorf("expected default recurringKind, got %q", got)
	}
	if got, _ := patch.ExtraString(domain.SlotFieldSourceType); got != domain.DefaultSourceType {
		t.Errorf("expected default sourceType, got %q", got)
	}
}

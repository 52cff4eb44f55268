package domain

// Ключи метаданных, которые трансляция кладет в каждый диапазон локального расписания
const (
	HelperDataSlotID          = "slot_id"
	HelperDataScheduleType    = "schedule_type"
	HelperDataReadOnly        = "read_only"
	HelperDataReminderMinutes = "reminder_minutes"
)

// HelperRange - один временной диапазон внутри дня локального расписания
// Времена хранятся строками "HH:MM:SS", метаданные непрозрачны для хранилища
type HelperRange struct {
	From string                 `json:"from" yaml:"from"`
	To   string                 `json:"to" yaml:"to"`
	Data map[string]interface{} `json:"data,omitempty" yaml:"data,omitempty"`
}

// HelperDefinition - подневное представление одного облачного слота
// для локального хранилища недельных расписаний
type HelperDefinition struct {
	Name         string                `json:"name,omitempty" yaml:"name,omitempty"`
	Days         map[int][]HelperRange `json:"days" yaml:"days"`
	ReadOnly     bool                  `json:"read_only" yaml:"read_only"`
	ScheduleType ScheduleType          `json:"schedule_type" yaml:"schedule_type"`
	Enabled      bool                  `json:"enabled" yaml:"enabled"`
}

// IsEmpty - определение без единого диапазона (слот представим только тумблером)
func (d *HelperDefinition) IsEmpty() bool {
	for _, ranges := range d.Days {
		if len(ranges) > 0 {
			return false
		}
	}
	return true
}

// Clone возвращает глубокую копию определения
func (d *HelperDefinition) Clone() *HelperDefinition {
	cp := *d
	cp.Days = make(map[int][]HelperRange, len(d.Days))
	for day, ranges := range d.Days {
		copied := make([]HelperRange, len(ranges))
		for i, r := range ranges {
			copied[i] = r
			if r.Data != nil {
				data := make(map[string]interface{}, len(r.Data))
				for k, v := range r.Data {
					data[k] = v
				}
				copied[i].Data = data
			}
		}
		cp.Days[day] = copied
	}
	return &cp
}

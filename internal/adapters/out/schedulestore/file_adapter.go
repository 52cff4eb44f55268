package schedulestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/domain"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
	"gopkg.in/yaml.v3"
)

// itemDocument - дисковая форма одного элемента
// Enabled хранится указателем: отсутствующий флаг означает true
type itemDocument struct {
	Name         string                  `yaml:"name,omitempty"`
	Days         map[int][]rangeDocument `yaml:"days"`
	ReadOnly     bool                    `yaml:"read_only"`
	ScheduleType string                  `yaml:"schedule_type"`
	Enabled      *bool                   `yaml:"enabled"`
}

// rangeDocument - дисковая форма одного диапазона
// Метаданные декодируются в interface{}: пользовательская правка со скалярным
// data не должна валить чтение всего файла, не-мапа трактуется как отсутствие
type rangeDocument struct {
	From string      `yaml:"from"`
	To   string      `yaml:"to"`
	Data interface{} `yaml:"data,omitempty"`
}

// FileAdapter - yaml-файловый драйвер хранилища недельных расписаний
// Правки файла снаружи (редактором пользователя) подхватываются через fsnotify
// и доставляются подписчикам как уведомления об изменившихся ключах
type FileAdapter struct {
	path   string
	logger out.LoggerPort

	mu          sync.Mutex
	snapshot    map[string]*domain.HelperDefinition
	subscribers map[string]func(key string)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewFileAdapter(path string, logger out.LoggerPort) (*FileAdapter, error) {
	a := &FileAdapter{
		path:        path,
		logger:      logger,
		subscribers: make(map[string]func(key string)),
		done:        make(chan struct{}),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	snapshot, err := a.readFile()
	if err != nil {
		return nil, err
	}
	a.snapshot = snapshot

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schedule_store.watch_failed: %w", err)
	}
	// Следим за каталогом: редакторы заменяют файл через rename
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	a.watcher = watcher

	go a.watchLoop()

	return a, nil
}

func (a *FileAdapter) Close() error {
	close(a.done)
	return a.watcher.Close()
}

func (a *FileAdapter) CreateItem(ctx context.Context, key string, def *domain.HelperDefinition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.snapshot[key]; exists {
		return fmt.Errorf("item already exists: %s", key)
	}
	a.snapshot[key] = def.Clone()

	if err := a.writeFileLocked(); err != nil {
		delete(a.snapshot, key)
		return err
	}
	go a.notify(key)
	return nil
}

func (a *FileAdapter) UpdateItem(ctx context.Context, key string, def *domain.HelperDefinition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous, exists := a.snapshot[key]
	if !exists {
		return fmt.Errorf("item not found: %s", key)
	}
	a.snapshot[key] = def.Clone()

	if err := a.writeFileLocked(); err != nil {
		a.snapshot[key] = previous
		return err
	}
	go a.notify(key)
	return nil
}

func (a *FileAdapter) DeleteItem(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous, exists := a.snapshot[key]
	if !exists {
		return nil
	}
	delete(a.snapshot, key)

	if err := a.writeFileLocked(); err != nil {
		a.snapshot[key] = previous
		return err
	}
	go a.notify(key)
	return nil
}

func (a *FileAdapter) GetItem(ctx context.Context, key string) (*domain.HelperDefinition, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	def, exists := a.snapshot[key]
	if !exists {
		return nil, nil
	}
	return def.Clone(), nil
}

func (a *FileAdapter) Subscribe(handler func(key string)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.NewString()
	a.subscribers[id] = handler

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *FileAdapter) watchLoop() {
	for {
		select {
		case <-a.done:
			return
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(a.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			a.reloadAndDiff()
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			a.logger.Error("schedule_store.watch_error", out.LogFields{
				"error": err.Error(),
			})
		}
	}
}

// reloadAndDiff перечитывает файл и уведомляет об изменившихся ключах
// Собственные записи адаптера диффа не дают: снапшот обновляется до записи файла
func (a *FileAdapter) reloadAndDiff() {
	loaded, err := a.readFile()
	if err != nil {
		a.logger.Error("schedule_store.reload_failed", out.LogFields{
			"error": err.Error(),
		})
		return
	}

	a.mu.Lock()
	var changed []string
	for key, def := range loaded {
		if prev, exists := a.snapshot[key]; !exists || !reflect.DeepEqual(prev, def) {
			changed = append(changed, key)
		}
	}
	for key := range a.snapshot {
		if _, exists := loaded[key]; !exists {
			changed = append(changed, key)
		}
	}
	a.snapshot = loaded
	a.mu.Unlock()

	for _, key := range changed {
		a.notify(key)
	}
}

func (a *FileAdapter) readFile() (map[string]*domain.HelperDefinition, error) {
	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return make(map[string]*domain.HelperDefinition), nil
	}
	if err != nil {
		return nil, err
	}

	var docs map[string]itemDocument
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}

	items := make(map[string]*domain.HelperDefinition, len(docs))
	for key, doc := range docs {
		items[key] = docToDefinition(doc)
	}
	return items, nil
}

func (a *FileAdapter) writeFileLocked() error {
	docs := make(map[string]itemDocument, len(a.snapshot))
	for key, def := range a.snapshot {
		docs[key] = definitionToDoc(def)
	}

	data, err := yaml.Marshal(docs)
	if err != nil {
		return err
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

func (a *FileAdapter) notify(key string) {
	a.mu.Lock()
	handlers := make([]func(string), 0, len(a.subscribers))
	for _, handler := range a.subscribers {
		handlers = append(handlers, handler)
	}
	a.mu.Unlock()

	for _, handler := range handlers {
		handler(key)
	}
}

func docToDefinition(doc itemDocument) *domain.HelperDefinition {
	// Отсутствующий флаг enabled означает включенный элемент
	enabled := true
	if doc.Enabled != nil {
		enabled = *doc.Enabled
	}

	days := make(map[int][]domain.HelperRange, len(doc.Days))
	for day, ranges := range doc.Days {
		converted := make([]domain.HelperRange, 0, len(ranges))
		for _, r := range ranges {
			converted = append(converted, domain.HelperRange{
				From: r.From,
				To:   r.To,
				Data: rangeData(r.Data),
			})
		}
		days[day] = converted
	}

	return &domain.HelperDefinition{
		Name:         doc.Name,
		Days:         days,
		ReadOnly:     doc.ReadOnly,
		ScheduleType: domain.ScheduleType(doc.ScheduleType),
		Enabled:      enabled,
	}
}

// rangeData приводит сырые метаданные диапазона к мапе, все остальное - отсутствие
func rangeData(raw interface{}) map[string]interface{} {
	switch data := raw.(type) {
	case map[string]interface{}:
		return data
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(data))
		for k, v := range data {
			key, ok := k.(string)
			if !ok {
				continue
			}
			converted[key] = v
		}
		return converted
	default:
		return nil
	}
}

func definitionToDoc(def *domain.HelperDefinition) itemDocument {
	enabled := def.Enabled

	days := make(map[int][]rangeDocument, len(def.Days))
	for day, ranges := range def.Days {
		converted := make([]rangeDocument, 0, len(ranges))
		for _, r := range ranges {
			doc := rangeDocument{From: r.From, To: r.To}
			if r.Data != nil {
				doc.Data = r.Data
			}
			converted = append(converted, doc)
		}
		days[day] = converted
	}

	return itemDocument{
		Name:         def.Name,
		Days:         days,
		ReadOnly:     def.ReadOnly,
		ScheduleType: string(def.ScheduleType),
		Enabled:      &enabled,
	}
}

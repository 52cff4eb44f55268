package mappingstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

// Версия дискового формата файла маппингов
const fileFormatVersion = 1

// fileDocument - дисковая форма: {serial: {slot_id: item_id}} плюс версия
type fileDocument struct {
	Version  int                          `json:"version"`
	Mappings map[string]map[string]string `json:"mappings"`
}

// FileAdapter - json-файловый драйвер хранилища маппингов
type FileAdapter struct {
	path   string
	mu     sync.Mutex
	logger out.LoggerPort
}

func NewFileAdapter(path string, logger out.LoggerPort) *FileAdapter {
	return &FileAdapter{
		path:   path,
		logger: logger,
	}
}

// Load читает файл маппингов, битые записи верхнего уровня пропускаются
// Отсутствующий файл - это пустой маппинг, а не ошибка
func (a *FileAdapter) Load(ctx context.Context) (map[string]map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		return make(map[string]map[string]string), nil
	}
	if err != nil {
		return nil, err
	}

	// Разбираем верхний уровень вручную, чтобы пропустить битые записи
	var doc struct {
		Version  int                        `json:"version"`
		Mappings map[string]json.RawMessage `json:"mappings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	mappings := make(map[string]map[string]string, len(doc.Mappings))
	for serial, raw := range doc.Mappings {
		var mapping map[string]string
		if err := json.Unmarshal(raw, &mapping); err != nil {
			a.logger.Warn("mapping_store.load.entry_skipped", out.LogFields{
				"serial": serial,
				"error":  err.Error(),
			})
			continue
		}
		mappings[serial] = mapping
	}

	a.logger.Debug("mapping_store.loaded", out.LogFields{
		"serials": len(mappings),
		"version": doc.Version,
	})

	return mappings, nil
}

// Save атомарно перезаписывает файл через временный файл и переименование
func (a *FileAdapter) Save(ctx context.Context, mappings map[string]map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(fileDocument{
		Version:  fileFormatVersion,
		Mappings: mappings,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}

	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}

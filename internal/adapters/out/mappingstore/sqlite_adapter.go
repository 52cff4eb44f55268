package mappingstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS slot_mappings (
	serial  TEXT NOT NULL,
	slot_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	PRIMARY KEY (serial, slot_id)
);`

// SqliteAdapter - sqlite драйвер хранилища маппингов
// для хостов, которым файл с json не подходит
type SqliteAdapter struct {
	db     *sql.DB
	logger out.LoggerPort
}

func NewSqliteAdapter(path string, logger out.LoggerPort) (*SqliteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("mapping_store.sqlite.open_failed: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("mapping_store.sqlite.migrate_failed: %w", err)
	}

	return &SqliteAdapter{db: db, logger: logger}, nil
}

func (a *SqliteAdapter) Close() error {
	return a.db.Close()
}

func (a *SqliteAdapter) Load(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT serial, slot_id, item_id FROM slot_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mappings := make(map[string]map[string]string)
	for rows.Next() {
		var serial, slotID, itemID string
		if err := rows.Scan(&serial, &slotID, &itemID); err != nil {
			// Битая строка пропускается, загрузка продолжается
			a.logger.Warn("mapping_store.load.row_skipped", out.LogFields{
				"error": err.Error(),
			})
			continue
		}
		if mappings[serial] == nil {
			mappings[serial] = make(map[string]string)
		}
		mappings[serial][slotID] = itemID
	}

	return mappings, rows.Err()
}

// Save перезаписывает таблицу целиком в одной транзакции
func (a *SqliteAdapter) Save(ctx context.Context, mappings map[string]map[string]string) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM slot_mappings`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO slot_mappings (serial, slot_id, item_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for serial, mapping := range mappings {
		for slotID, itemID := range mapping {
			if _, err := stmt.ExecContext(ctx, serial, slotID, itemID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

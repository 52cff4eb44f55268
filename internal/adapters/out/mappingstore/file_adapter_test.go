package mappingstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/suchimauz/ev-charge-schedule-sync/internal/core/ports/out"
)

type noopLogger struct{}

func (noopLogger) Debug(event string, fields out.LogFields) {}
func (noopLogger) Info(event string, fields out.LogFields) {}
func (noopLogger) Warn(event string, fields out.LogFields) {}
func (noopLogger) Error(event string, fields out.LogFields) {}

func (l noopLogger) WithFields(fields out.LogFields) out.LoggerPort { return l }
func (l noopLogger) WithModule(module string) out.LoggerPort        { return l }

func TestFileAdapter_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "mappings.json")
	adapter := NewFileAdapter(path, noopLogger{})

	mappings := map[string]map[string]string{
		"veh1": {"s1": "ev_charge_veh1_s1", "s2": "ev_charge_veh1_s2"},
		"veh2": {"s9": "ev_charge_veh2_s9"},
	}

	if err := adapter.Save(ctx, mappings); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := adapter.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 serials, got %d", len(loaded))
	}
	if loaded["veh1"]["s2"] != "ev_charge_veh1_s2" {
		t.Errorf("unexpected mapping: %v", loaded["veh1"])
	}
	if loaded["veh2"]["s9"] != "ev_charge_veh2_s9" {
		t.Errorf("unexpected mapping: %v", loaded["veh2"])
	}

	// Временный файл после переименования не остается
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file must not survive a save")
	}
}

func TestFileAdapter_LoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never_written.json")
	adapter := NewFileAdapter(path, noopLogger{})

	loaded, err := adapter.Load(context.Background())
	if err != nil {
		t.Fatalf("missing file must not be an error, got %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty mappings, got %v", loaded)
	}
}

func TestFileAdapter_LoadSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")

	// Запись veh2 битая: значение не объект
	raw := `{
  "version": 1,
  "mappings": {
    "veh1": {"s1": "ev_charge_veh1_s1"},
    "veh2": "not an object"
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter := NewFileAdapter(path, noopLogger{})
	loaded, err := adapter.Load(context.Background())
	if err != nil {
		t.Fatalf("malformed entry must not fail the load, got %v", err)
	}

	if len(loaded) != 1 {
		t.Fatalf("expected the malformed entry to be skipped, got %v", loaded)
	}
	if loaded["veh1"]["s1"] != "ev_charge_veh1_s1" {
		t.Errorf("healthy entry must survive, got %v", loaded["veh1"])
	}
}

func TestFileAdapter_LoadRejectsGarbageDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	adapter := NewFileAdapter(path, noopLogger{})
	if _, err := adapter.Load(context.Background()); err == nil {
		t.Error("expected an error for an unreadable document")
	}
}

func TestFileAdapter_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mappings.json")
	adapter := NewFileAdapter(path, noopLogger{})

	if err := adapter.Save(ctx, map[string]map[string]string{
		"veh1": {"s1": "a", "s2": "b"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := adapter.Save(ctx, map[string]map[string]string{
		"veh1": {"s1": "a"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := adapter.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded["veh1"]) != 1 {
		t.Errorf("save must fully replace the previous content, got %v", loaded["veh1"])
	}
}

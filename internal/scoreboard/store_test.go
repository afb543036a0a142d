package scoreboard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigStore_LoadMissing(t *testing.T) {
	s := NewConfigStore(filepath.Join(t.TempDir(), "config", "config.json"))
	if _, err := s.Load(); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load err = %v, want ErrConfigNotFound", err)
	}
}

func TestConfigStore_SaveCreatesDirAndIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.json")
	s := NewConfigStore(path)

	backup, err := s.Save([]byte(`{"debug":false,"preferences":{"teams":["Canadiens"]}}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if backup != "" {
		t.Errorf("backup = %q for a first save", backup)
	}

	data, _ := os.ReadFile(path)
	want := "{\n  \"debug\": false,\n  \"preferences\": {\n    \"teams\": [\n      \"Canadiens\"\n    ]\n  }\n}"
	if string(data) != want {
		t.Errorf("written =\n%s\nwant\n%s", data, want)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(loaded) != want {
		t.Errorf("Load = %s", loaded)
	}
}

func TestConfigStore_SaveKeepsKeyOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s := NewConfigStore(path)
	if _, err := s.Save([]byte(`{"zeta":1,"alpha":2}`)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{\n  \"zeta\": 1,\n  \"alpha\": 2\n}" {
		t.Errorf("written = %s", data)
	}
}

func TestConfigStore_SaveBacksUpPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"old":true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewConfigStore(path)
	s.SetNowFunc(func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.Local) })

	backup, err := s.Save([]byte(`{"new":true}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	wantBackup := filepath.Join(dir, "config.json.20260203040506.bak")
	if backup != wantBackup {
		t.Errorf("backup = %q, want %q", backup, wantBackup)
	}
	old, err := os.ReadFile(wantBackup)
	if err != nil || string(old) != `{"old":true}` {
		t.Errorf("backup content = %q, err %v", old, err)
	}
}

func TestConfigStore_SaveRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"old":true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewConfigStore(path).Save([]byte(`{"broken":`)); err == nil {
		t.Fatal("Save accepted invalid JSON")
	}
	data, _ := os.ReadFile(path)
	if string(data) != `{"old":true}` {
		t.Error("invalid save touched the existing config")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, invalid save must not create a backup", len(entries))
	}
}

func TestConfigStore_LoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{nope"), 0o644)
	_, err := NewConfigStore(path).Load()
	if err == nil || errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load err = %v, want parse error", err)
	}
}

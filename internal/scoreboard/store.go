// Package scoreboard reads and writes the files of the scoreboard checkout
// that the control hub edits: config.json, board manifests, VERSION.
package scoreboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ErrConfigNotFound means config.json does not exist yet.
var ErrConfigNotFound = errors.New("config.json not found")

// backupLayout is the timestamp appended to replaced config files.
const backupLayout = "20060102150405"

// ConfigStore manages the scoreboard's config.json. Saving keeps the
// previous file as config.json.<timestamp>.bak.
type ConfigStore struct {
	Path  string
	nowFn func() time.Time
}

// NewConfigStore returns a store for the config file at path.
func NewConfigStore(path string) *ConfigStore {
	return &ConfigStore{Path: path, nowFn: time.Now}
}

// Load returns the config document as stored, key order preserved.
func (s *ConfigStore) Load() (json.RawMessage, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse %s: invalid JSON", s.Path)
	}
	return json.RawMessage(data), nil
}

// Save validates data, renames any existing config to a timestamped
// backup and writes data indented by two spaces. It returns the backup
// path, or "" when there was no previous file.
func (s *ConfigStore) Save(data []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return "", fmt.Errorf("invalid config JSON: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Printf("[config] creating directory %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	var backup string
	if _, err := os.Stat(s.Path); err == nil {
		backup = s.Path + "." + s.nowFn().Format(backupLayout) + ".bak"
		log.Printf("[config] backing up existing config to %s", backup)
		if err := os.Rename(s.Path, backup); err != nil {
			return "", fmt.Errorf("backup config: %w", err)
		}
	}

	log.Printf("[config] saving new config to %s", s.Path)
	if err := os.WriteFile(s.Path, buf.Bytes(), 0o644); err != nil {
		return backup, fmt.Errorf("write config: %w", err)
	}
	return backup, nil
}

// SetNowFunc replaces the clock used for backup names; used by tests.
func (s *ConfigStore) SetNowFunc(fn func() time.Time) { s.nowFn = fn }

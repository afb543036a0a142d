package scoreboard

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"unicode"

	"github.com/tidwall/jsonc"
)

// BaseBoards are boards offered even when no manifest declares them.
var BaseBoards = []string{"wxalert", "wxforecast", "seriesticker", "stanley_cup_champions", "christmas"}

// exampleBoard is the plugin template directory, never a real board.
const exampleBoard = "example_board"

// Board is a board choice in the shape the config editor expects.
type Board struct {
	V string `json:"v"`
	N string `json:"n"`
}

type manifest struct {
	Boards []struct {
		ID string `json:"id"`
	} `json:"boards"`
}

// ScanBoards returns the board ids declared by <dir>/*/plugin.json,
// skipping the listed directory names. Unreadable or invalid manifests are
// logged and ignored; a missing dir yields nil.
func ScanBoards(dir string, skip ...string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[boards] directory not found: %s", dir)
		} else {
			log.Printf("[boards] scanning %s: %v", dir, err)
		}
		return nil
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() || slices.Contains(skip, e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name(), "plugin.json")
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("[boards] reading %s: %v", path, err)
			}
			continue
		}
		var m manifest
		if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
			log.Printf("[boards] invalid JSON in %s: %v", path, err)
			continue
		}
		for _, b := range m.Boards {
			if b.ID != "" {
				ids = append(ids, b.ID)
			}
		}
	}
	log.Printf("[boards] loaded %d boards from %s", len(ids), dir)
	return ids
}

// Boards merges BaseBoards with the builtin and plugin manifests, sorted
// and de-duplicated. Base boards that a builtin manifest also declares are
// reported so they can be dropped from the base list.
func Boards(builtinDir, pluginDir string) []Board {
	builtin := ScanBoards(builtinDir)
	plugin := ScanBoards(pluginDir, exampleBoard)

	var dups []string
	for _, id := range BaseBoards {
		if slices.Contains(builtin, id) {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		log.Printf("[boards] WARNING: base boards also declared by builtin manifests: %v", dups)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, list := range [][]string{BaseBoards, builtin, plugin} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	boards := make([]Board, len(ids))
	for i, id := range ids {
		boards[i] = Board{V: id, N: DisplayName(id)}
	}
	return boards
}

// DisplayName turns a board id into a label: underscores become spaces and
// each run of letters is capitalised ("stanley_cup" -> "Stanley Cup").
func DisplayName(id string) string {
	out := make([]rune, 0, len(id))
	prevLetter := false
	for _, r := range id {
		if r == '_' {
			r = ' '
		}
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		out = append(out, r)
	}
	return string(out)
}

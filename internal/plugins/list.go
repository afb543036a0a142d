package plugins

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/falkyre/scoreboard-hub/internal/logutil"
)

var listHeader = regexp.MustCompile(`NAME\s+VERSION\s+STATUS\s+COMMIT`)

// ListEntry is one row of the `plugins.py list` table.
type ListEntry struct {
	Version string
	Status  string
	Commit  string
}

// ParseList parses the table printed by `plugins.py list`: a header line, a
// separator line, then one whitespace-separated row per plugin. Rows with
// fewer than four columns are skipped. Output without a recognisable header
// yields an empty map.
func ParseList(output string) map[string]ListEntry {
	entries := make(map[string]ListEntry)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) <= 2 {
		log.Printf("[plugins] no data lines in list output")
		return entries
	}
	if !listHeader.MatchString(lines[0]) {
		log.Printf("[plugins] unrecognised list header: %s", logutil.SanitizeForLog(lines[0]))
		return entries
	}

	for _, line := range lines[2:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			log.Printf("[plugins] skipping list line with %d columns: %s", len(parts), logutil.SanitizeForLog(line))
			continue
		}
		entries[parts[0]] = ListEntry{Version: parts[1], Status: parts[2], Commit: parts[3]}
	}
	return entries
}

// Plugin is the merged view of one plugin shown by the plugins page.
type Plugin struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Commit  string `json:"commit"`
}

// Merge combines the index (available), plugins.json (installed) and the
// live list output. Index entries start as "available", names known only
// from other sources as "unknown"; a live row overrides version, status and
// commit, and an installed plugin missing from the live list is "error".
// The result is sorted by name.
func Merge(available, installed map[string]Entry, live map[string]ListEntry) []Plugin {
	merged := make(map[string]*Plugin, len(available)+len(installed)+len(live))
	for name, e := range available {
		merged[name] = &Plugin{Name: name, URL: orDash(e.URL), Version: "-", Status: "available", Commit: "-"}
	}

	names := make(map[string]struct{})
	for name := range available {
		names[name] = struct{}{}
	}
	for name := range installed {
		names[name] = struct{}{}
	}
	for name := range live {
		names[name] = struct{}{}
	}

	for name := range names {
		p, ok := merged[name]
		if !ok {
			p = &Plugin{Name: name, URL: orDash(installed[name].URL), Version: "-", Status: "unknown", Commit: "-"}
			merged[name] = p
		}
		if row, ok := live[name]; ok {
			p.Version = row.Version
			p.Status = row.Status
			p.Commit = row.Commit
		} else if _, ok := installed[name]; ok {
			p.Status = "error"
		}
	}

	out := make([]Plugin, 0, len(merged))
	for _, p := range merged {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIndexPage_SetupMarker(t *testing.T) {
	cfg, _ := setupOnboard(t)
	dir := cfg.TemplatesDir
	writeFile(t, filepath.Join(dir, "index.html"), "dashboard")
	writeFile(t, filepath.Join(dir, "setup.html"), "wizard")

	get := func(h http.Handler) string {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Body.String()
	}

	if got := get(IndexPage(dir)); got != "dashboard" {
		t.Errorf("without marker: %q", got)
	}

	writeFile(t, cfg.SetupMarker(), "")
	if got := get(IndexPage(dir)); got != "wizard" {
		t.Errorf("with marker: %q", got)
	}
	if got := get(SetupPage(dir)); got != "wizard" {
		t.Errorf("setup page with marker: %q", got)
	}

	cfg.Debug = true
	if got := get(IndexPage(dir)); got != "dashboard" {
		t.Errorf("debug bypass: %q", got)
	}

	cfg.Debug = false
	os.Remove(cfg.SetupMarker())
	if got := get(SetupPage(dir)); !strings.Contains(got, "dashboard") {
		t.Errorf("setup page after onboarding: %q", got)
	}
}

package handlers

import (
	"log"
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/middleware"
)

// setupPending reports whether onboarding should be shown. Debug mode
// always skips it.
func setupPending() bool {
	return Onboard != nil && Onboard.SetupPending() && !config.Cfg.Debug
}

// IndexPage serves the dashboard, or the setup wizard until onboarding
// has finished.
func IndexPage(dir string) http.Handler {
	return middleware.NewPageHandler(dir, func(r *http.Request) string {
		if setupPending() {
			log.Printf("[pages] SETUP marker present, serving setup for %s", r.RemoteAddr)
			return "setup.html"
		}
		return "index.html"
	})
}

// SetupPage serves the setup wizard while onboarding is pending and the
// dashboard afterwards.
func SetupPage(dir string) http.Handler {
	return middleware.NewPageHandler(dir, func(r *http.Request) string {
		if setupPending() {
			return "setup.html"
		}
		return "index.html"
	})
}

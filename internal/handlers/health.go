package handlers

import (
	"net/http"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"gorm.io/gorm"
)

// DB is the audit database, set from main.go during init.
var DB *gorm.DB

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if DB != nil {
		sqlDB, err := DB.DB()
		if err == nil {
			if err := sqlDB.Ping(); err == nil {
				dbStatus = "connected"
			}
		}
	}

	status := "healthy"
	if dbStatus != "connected" {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"database": dbStatus,
		"version":  config.Version,
	})
}

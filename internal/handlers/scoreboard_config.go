package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/logutil"
	"github.com/falkyre/scoreboard-hub/internal/scoreboard"
)

// maxUploadBytes bounds an uploaded config file.
const maxUploadBytes = 10 << 20

// Configs is set from main.go during init.
var Configs *scoreboard.ConfigStore

// LoadConfig handles GET /load.
func LoadConfig(w http.ResponseWriter, r *http.Request) {
	data, err := Configs.Load()
	if err != nil {
		if errors.Is(err, scoreboard.ErrConfigNotFound) {
			log.Printf("[config] load request failed: %s not found", Configs.Path)
			writeError(w, http.StatusNotFound, "config.json not found.")
			return
		}
		log.Printf("[config] error loading config: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	log.Printf("[config] loading config from %s", Configs.Path)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "config": data})
}

// SaveConfig handles POST /save. The body is the complete config document.
func SaveConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("An error occurred: %v", err))
		return
	}

	backup, err := Configs.Save(body)
	if err != nil {
		log.Printf("[config] error saving config: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	if backup != "" {
		log.Printf("[config] backed up existing config to %s", backup)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Config saved to %s. Backup of old file created.", Configs.Path),
	})
}

// UploadConfig handles POST /upload. It validates the uploaded file and
// returns its content without saving it.
func UploadConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "No file part in the request.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part with an empty filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			writeError(w, http.StatusBadRequest, "No file selected.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file part in the request.")
		return
	}
	defer file.Close()

	log.Printf("[config] processing uploaded file %q", logutil.SanitizeForLog(header.Filename))
	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[config] error reading uploaded file: %v", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An error occurred: %v", err))
		return
	}
	if !json.Valid(data) {
		log.Printf("[config] upload failed: invalid JSON in the uploaded file")
		writeError(w, http.StatusBadRequest, "Invalid JSON in file.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "config": json.RawMessage(data)})
}

// DownloadConfig handles GET /download_config. On a full scoreboard image,
// or when ?logos=true, it returns a zip of the device configuration;
// otherwise just config.json.
func DownloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg := &config.Cfg
	includeLogos := r.URL.Query().Get("logos") == "true"
	_, err := os.Stat(cfg.PortalDir)
	fullSetup := err == nil

	if fullSetup || includeLogos {
		log.Printf("[config] zipping configuration files (full setup: %t, include logos: %t)", fullSetup, includeLogos)
		archive := scoreboard.Archive{
			Files: []string{
				cfg.ConfigPath(),
				cfg.SupervisorConfPath,
				cfg.TestScriptPath(),
				cfg.SplashScriptPath(),
			},
			IncludeLogos: includeLogos,
			LayoutDir:    cfg.LayoutDir(),
			LogosDir:     cfg.LogosDir(),
		}
		var buf bytes.Buffer
		if err := archive.Build(&buf); err != nil {
			log.Printf("[config] error building download archive: %v", err)
			http.Error(w, "An internal error occurred.", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+scoreboard.ArchiveName+`"`)
		w.Write(buf.Bytes())
		return
	}

	f, err := os.Open(cfg.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "config.json not found.", http.StatusNotFound)
			return
		}
		log.Printf("[config] error opening config for download: %v", err)
		http.Error(w, "An internal error occurred.", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="config.json"`)
	io.Copy(w, f)
}

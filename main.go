package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/falkyre/scoreboard-hub/internal/bridge"
	"github.com/falkyre/scoreboard-hub/internal/config"
	"github.com/falkyre/scoreboard-hub/internal/database"
	"github.com/falkyre/scoreboard-hub/internal/handlers"
	"github.com/falkyre/scoreboard-hub/internal/logging"
	"github.com/falkyre/scoreboard-hub/internal/logoeditor"
	"github.com/falkyre/scoreboard-hub/internal/middleware"
	"github.com/falkyre/scoreboard-hub/internal/onboard"
	"github.com/falkyre/scoreboard-hub/internal/plugins"
	"github.com/falkyre/scoreboard-hub/internal/runner"
	"github.com/falkyre/scoreboard-hub/internal/scoreboard"
	"github.com/falkyre/scoreboard-hub/internal/sshaudit"
	"github.com/falkyre/scoreboard-hub/internal/sshterminal"
	"github.com/falkyre/scoreboard-hub/internal/supervisor"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// auditPurgeSchedule is when expired terminal audit entries are removed.
const auditPurgeSchedule = "@daily"

type rootOptions struct {
	configPath    string
	scoreboardDir string
	debug         bool
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "scoreboard-hub",
		Short:        "Web control hub for the NHL LED scoreboard",
		Version:      config.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.Flags().StringVarP(&opts.scoreboardDir, "scoreboard_dir", "d", "", "path to the nhl-led-scoreboard checkout (overrides the config file)")
	rootCmd.Flags().StringVar(&opts.configPath, "config", "", "path to the hub config file (default config.toml beside the binary)")
	rootCmd.Flags().BoolVar(&opts.debug, "debug", false, "run off-device: skip setup redirects and system changes")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("scoreboard_dir") {
		cfg.ScoreboardDir = opts.scoreboardDir
	}
	if opts.debug {
		cfg.Debug = true
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}

	logging.Init(cfg.LogPath)
	defer logging.Close()
	log.Printf("Control hub %s: scoreboard_dir=%s, port=%d, debug=%v", config.Version, cfg.ScoreboardDir, cfg.Port, cfg.Debug)

	db, err := database.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer database.Close(db)
	handlers.DB = db

	auditor := sshaudit.NewAuditor(db, cfg.AuditRetentionDays)
	handlers.AuditLog = auditor
	auditor.PurgeOlderThan(0)

	// Init terminal session registry
	registry := sshterminal.NewRegistry(
		sshterminal.WithMaxSessions(cfg.TerminalMaxSessions),
		sshterminal.WithDestroyHook(auditor.SessionDestroyed),
	)
	handlers.Sessions = registry
	handlers.Bridge = bridge.NewHandler(registry, sshterminal.NewConnector(), sshterminal.NewLoginLimiter(nil), auditor)
	log.Printf("Terminal initialized (grace=%s, max_sessions=%d)", registry.GracePeriod(), cfg.TerminalMaxSessions)

	scripts := runner.New(cfg.ScoreboardDir, cfg.PythonExec)
	handlers.Scripts = scripts
	handlers.Configs = scoreboard.NewConfigStore(cfg.ConfigPath())
	handlers.Plugins = plugins.NewManager(cfg, scripts)
	handlers.Supervisor = supervisor.NewClient(cfg.SupervisorRPCURL(), cfg.SupervisorAddr())
	handlers.LogoEditor = logoeditor.NewManager(cfg)
	handlers.Onboard = onboard.New(cfg)

	sched := cron.New()
	if cfg.PluginRefreshSchedule != "" {
		if _, err := handlers.Plugins.ScheduleRefresh(sched, cfg.PluginRefreshSchedule); err != nil {
			log.Printf("WARNING: %v", err)
		}
	}
	if _, err := sched.AddFunc(auditPurgeSchedule, func() { auditor.PurgeOlderThan(0) }); err != nil {
		log.Printf("WARNING: schedule audit purge: %v", err)
	}
	sched.Start()

	// Graceful shutdown
	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: newRouter(cfg),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	<-sched.Stop().Done()
	registry.CloseAll()
	if err := handlers.LogoEditor.Stop(); err != nil && !errors.Is(err, logoeditor.ErrNotTracked) {
		log.Printf("Logo editor shutdown: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func newRouter(cfg *config.Settings) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.PeerAddr)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handlers.HealthCheck)

	// Scoreboard config
	r.Get("/load", handlers.LoadConfig)
	r.Post("/save", handlers.SaveConfig)
	r.Post("/upload", handlers.UploadConfig)
	r.Get("/download_config", handlers.DownloadConfig)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", handlers.GetStatus)
		r.Get("/boards", handlers.ListBoards)

		r.Post("/mqtt-test", handlers.MQTTTest)
		r.Post("/run-issue-uploader", handlers.RunIssueUploader)

		r.Post("/plugins/refresh", handlers.RefreshPluginIndex)
		r.Get("/plugins/status", handlers.GetPluginStatus)
		r.Post("/plugins/add", handlers.AddPlugin)
		r.Post("/plugins/remove", handlers.RemovePlugin)
		r.Post("/plugins/update", handlers.UpdatePlugin)
		r.Post("/plugins/sync", handlers.SyncPlugins)

		r.Get("/logo-editor/status", handlers.GetLogoEditorStatus)
		r.Post("/logo-editor/launch", handlers.LaunchLogoEditor)
		r.Post("/logo-editor/stop", handlers.StopLogoEditor)

		r.Get("/supervisor/processes", handlers.ListProcesses)
		r.Post("/supervisor/start", handlers.StartProcess)
		r.Post("/supervisor/stop", handlers.StopProcess)
		r.Post("/supervisor/tail_stderr", handlers.TailProcessStderr)

		r.Post("/setup/config", handlers.SetupCreateConfig)
		r.Post("/setup/test-script", handlers.SetupTestScript)
		r.Post("/setup/supervisor", handlers.SetupSupervisor)
		r.Post("/setup/finish", handlers.SetupFinish)

		r.Get("/terminal/sessions", handlers.ListTerminalSessions)
		r.Delete("/terminal/sessions/{prefix}", handlers.DeleteTerminalSession)
		r.Get("/terminal/audit", handlers.GetTerminalAuditLogs)

		r.Get("/logs", handlers.GetServerLogs)
		r.Delete("/logs", handlers.ClearServerLogs)
	})

	// Terminal WebSocket
	r.Get("/terminal/ws", handlers.TerminalWS)

	// Pages
	tmpl := cfg.TemplatesDir
	r.Method(http.MethodGet, "/", handlers.IndexPage(tmpl))
	r.Method(http.MethodGet, "/setup", handlers.SetupPage(tmpl))
	r.Method(http.MethodGet, "/config", middleware.Page(tmpl, "config.html"))
	r.Method(http.MethodGet, "/utilities", middleware.Page(tmpl, "utilities.html"))
	r.Method(http.MethodGet, "/plugins", middleware.Page(tmpl, "plugins.html"))
	r.Method(http.MethodGet, "/supervisor", middleware.Page(tmpl, "supervisor_rpc.html"))
	r.Method(http.MethodGet, "/logo_editor", middleware.Page(tmpl, "logo_editor_embed.html"))
	r.Method(http.MethodGet, "/terminal", middleware.Page(tmpl, "ssh_index.html"))
	r.Handle("/assets/*", middleware.NewStaticHandler(cfg.AssetsDir, "/assets/"))

	return r
}

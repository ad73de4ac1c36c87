package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapbooth/snapbooth/internal/camera"
	"github.com/snapbooth/snapbooth/internal/capture"
	"github.com/snapbooth/snapbooth/internal/config"
	"github.com/snapbooth/snapbooth/internal/database"
	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/finisher"
	internalhttp "github.com/snapbooth/snapbooth/internal/http"
	"github.com/snapbooth/snapbooth/internal/http/handlers"
	"github.com/snapbooth/snapbooth/internal/observability"
	"github.com/snapbooth/snapbooth/internal/repository"
	"github.com/snapbooth/snapbooth/internal/scheduler"
	"github.com/snapbooth/snapbooth/internal/storage"
	"github.com/snapbooth/snapbooth/internal/template"
	"github.com/snapbooth/snapbooth/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the snapbooth daemon",
	Long: `Start the booth daemon: camera acquisition, capture coordination and
the HTTP control API.

The API provides:
- POST /api/v1/capture to trigger a capture
- GET  /api/v1/preview.jpg for a live camera snapshot
- GET  /api/v1/events for a server-sent event stream
- Template, history and camera management endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("output-dir", "", "Photo output directory")
	serveCmd.Flags().String("template-dir", "", "Template directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	logger.Info("starting snapbooth",
		"version", version.Short(),
		"devices", len(cfg.Camera.Devices))

	bus := events.NewBus()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	records := repository.NewCaptureRepository(db.DB)

	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Templates.Directory, 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}

	photoSandbox, err := storage.NewSandbox(cfg.Output.Directory)
	if err != nil {
		return fmt.Errorf("creating output sandbox: %w", err)
	}
	templateSandbox, err := storage.NewSandbox(cfg.Templates.Directory)
	if err != nil {
		return fmt.Errorf("creating template sandbox: %w", err)
	}

	templates := template.NewStore(templateSandbox, bus, logger)
	if err := templates.Load(); err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	if cfg.Templates.Default != "" {
		if err := templates.Select(cfg.Templates.Default); err != nil {
			logger.Warn("default template not found, keeping current selection",
				"template", cfg.Templates.Default)
		}
	}
	for name, value := range cfg.Templates.Variables {
		templates.SetVariable(name, value)
	}

	compositor, err := template.NewCompositor()
	if err != nil {
		return fmt.Errorf("initializing compositor: %w", err)
	}

	backend := camera.NewOpenCVBackend()
	supCfg := supervisorConfig(cfg.Camera)

	// Enumerate before the supervisor claims a device: probing opens and
	// closes each candidate, which would fight a running frame source.
	probedAt := time.Now()
	probe := camera.NewEnumerator(backend, cfg.Camera.ProbeTimeout, logger).Probe(supCfg.Candidates)
	openable := 0
	for _, r := range probe {
		if r.Openable {
			openable++
		}
	}
	logger.Info("device enumeration complete",
		"candidates", len(probe), "openable", openable)

	supervisor := camera.NewSupervisor(supCfg, backend, bus, logger)
	if err := supervisor.Start(); err != nil {
		// A booth without a camera still serves its API; the supervisor
		// reports the failed state and can be reinitialized remotely.
		logger.Error("camera startup failed", "error", err)
	}
	defer supervisor.Stop()

	finish := finisher.New(photoSandbox, cfg.Tone, cfg.Output, bus, logger)
	coordinator := capture.NewCoordinator(
		supervisor, templates, compositor, finish, records, bus, cfg.Capture, logger)

	retention := scheduler.NewRetention(cfg.Retention, records, photoSandbox, bus, logger)
	if err := retention.Start(); err != nil {
		return fmt.Errorf("starting retention: %w", err)
	}
	defer retention.Stop()

	server := internalhttp.NewServer(cfg.Server, logger, version.Short())
	handlers.NewStatusHandler(version.Short(), supervisor, templates, coordinator).Register(server.API())
	handlers.NewCameraHandler(supervisor, probe, probedAt).Register(server.API())
	handlers.NewCaptureHandler(coordinator).Register(server.API())
	handlers.NewTemplateHandler(templates).Register(server.API())
	handlers.NewCapturesHandler(records).Register(server.API())
	handlers.NewHealthHandler(version.Short(), finish, db).Register(server.API())
	server.Router().Method("GET", "/api/v1/preview.jpg", handlers.NewPreviewHandler(supervisor, logger))
	server.Router().Method("GET", "/api/v1/events", handlers.NewEventsHandler(bus, logger))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// applyServeFlags overrides loaded config with flags the user set.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.Output.Directory, _ = cmd.Flags().GetString("output-dir")
	}
	if cmd.Flags().Changed("template-dir") {
		cfg.Templates.Directory, _ = cmd.Flags().GetString("template-dir")
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		cfg.Logging.Format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}
}

func supervisorConfig(cfg config.CameraConfig) camera.SupervisorConfig {
	candidates := make([]camera.DeviceCandidate, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		candidates = append(candidates, camera.DeviceCandidate{
			Index:  d.Index,
			Width:  d.Width,
			Height: d.Height,
			FPS:    d.FPS,
		})
	}
	return camera.SupervisorConfig{
		Candidates:      candidates,
		FrameStaleAfter: cfg.FrameStaleAfter,
		ReadTimeout:     cfg.ReadTimeout,
		MaxReadFailures: cfg.MaxReadFailures,
	}
}

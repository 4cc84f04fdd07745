package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/arbiter"
	"github.com/pitabwire/inspector/internal/archive"
	"github.com/pitabwire/inspector/internal/capture"
	"github.com/pitabwire/inspector/internal/config"
	"github.com/pitabwire/inspector/internal/controller"
	"github.com/pitabwire/inspector/internal/display"
	"github.com/pitabwire/inspector/internal/events"
	"github.com/pitabwire/inspector/internal/input"
	"github.com/pitabwire/inspector/internal/observability"
	"github.com/pitabwire/inspector/internal/recording"
	"github.com/pitabwire/inspector/internal/redraw"
	"github.com/pitabwire/inspector/internal/render"
	"github.com/pitabwire/inspector/internal/transport"
	"github.com/pitabwire/inspector/internal/workflow"
)

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the kiosk: camera, screen, buttons and remote control",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return run(ctx, *configPath)
		},
	}
}

func run(ctx context.Context, configPath string) error {
	// Step 1: Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Step 2: Initialize telemetry (logger, tracer, metrics).
	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "inspectord", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.InitMetrics(reg)

	// Step 3: Load checklist content.
	content, err := workflow.LoadContent(cfg.Checklist.Path)
	if err != nil {
		logger.Error("checklist loading failed", zap.Error(err))
		return err
	}

	// Step 4: Validate the camera device and settle capture parameters.
	if err := capture.ProbeDevice(cfg.Recording.Device); err != nil {
		logger.Error("camera unavailable", zap.Error(err))
		return err
	}
	settings := capture.Normalize(capture.Settings{
		Device: cfg.Recording.Device,
		Width:  cfg.Recording.Width,
		Height: cfg.Recording.Height,
		FPS:    cfg.Recording.FPS,
	}, logger.Named("capture"))

	// Step 5: Fonts and display.
	faces, err := render.LoadFaces(cfg.Render.FontPath, cfg.Render.FontSizes)
	if err != nil {
		logger.Error("font loading failed", zap.Error(err))
		return err
	}
	renderer := render.New(cfg.Display.Width, cfg.Display.Height, faces)

	screen, err := display.Open(cfg.Display, logger.Named("display"))
	if err != nil {
		logger.Error("display unavailable", zap.Error(err))
		return err
	}

	// Step 6: Optional MQTT event feed.
	emitter, stopEvents, err := startEvents(cfg.Events, logger.Named("events"))
	if err != nil {
		logger.Error("event feed failed", zap.Error(err))
		_ = screen.Close()
		return err
	}
	defer stopEvents()

	// Step 7: Recording session. A failure disables recording but the
	// checklist still runs.
	recOpts := []recording.Option{
		recording.WithOutput(cfg.Recording.OutputDir, cfg.Recording.FilePrefix),
		recording.WithStopTimeout(cfg.Recording.StopTimeout),
		recording.WithLogger(logger.Named("recording")),
		recording.WithObserver(metrics),
	}
	if emitter != nil {
		recOpts = append(recOpts, recording.WithObserver(emitter))
	}
	if cfg.Archive.Enabled {
		recOpts = append(recOpts, recording.WithArchiver(
			archive.New(cfg.Archive.Dir, cfg.Archive.ProbeFile, logger.Named("archive")),
		))
	}
	lifecycle := recording.New(capture.NewEncoder(settings, logger.Named("encoder")), recOpts...)
	if _, err := lifecycle.Start(ctx); err != nil {
		logger.Warn("continuing without recording")
	}

	// Step 8: Workflow model behind the arbiter.
	trigger := redraw.New()
	model := workflow.NewModel(content,
		workflow.WithNotifier(trigger),
		workflow.OnComplete(lifecycle.RequestStop),
	)
	arbOpts := []arbiter.Option{
		arbiter.WithCooldown(cfg.Input.Cooldown),
		arbiter.WithLogger(logger.Named("arbiter")),
		arbiter.WithObserver(metrics),
	}
	if emitter != nil {
		arbOpts = append(arbOpts, arbiter.WithObserver(emitter))
	}
	arb := arbiter.New(model, trigger, arbOpts...)
	metrics.SetStage(workflow.StageStart)

	// Step 9: Camera.
	camera, err := capture.OpenCamera(ctx, settings,
		capture.WithRetryPause(cfg.Recording.ReadRetryPause),
		capture.WithRestartBackoff(cfg.Recording.RestartThreshold, cfg.Recording.RestartBackoff),
		capture.WithCameraLogger(logger.Named("camera")),
	)
	if err != nil {
		logger.Error("camera failed to start", zap.Error(err))
		_ = lifecycle.Stop(context.WithoutCancel(ctx))
		_ = screen.Close()
		return err
	}

	// Step 10: Physical buttons. Without GPIO the kiosk runs on the remote
	// control alone. Closing the returned pins stops the poller first.
	var pins input.Pins
	if cfg.Input.Enabled {
		buttons := input.Buttons(cfg.Input.Pins)
		lines, err := input.OpenPins(cfg.Input.Chip, buttons)
		if err != nil {
			logger.Warn("buttons unavailable, remote control only", zap.Error(err))
		} else {
			poller := input.NewPoller(lines, buttons, arb,
				input.WithInterval(cfg.Input.PollInterval),
				input.WithReleasePoll(cfg.Input.ReleasePoll),
				input.WithMaxHold(cfg.Input.MaxHold),
				input.WithLogger(logger.Named("input")),
			)
			pins = poller.Start(ctx)
		}
	}

	// Step 11: Controller.
	deps := controller.Dependencies{
		Arbiter:  arb,
		Trigger:  trigger,
		Camera:   camera,
		Recorder: lifecycle,
		Renderer: renderer,
		Display:  screen,
		Observer: metrics,
		Logger:   logger.Named("controller"),
	}
	if pins != nil {
		deps.Pins = pins
	}
	ctrl := controller.New(controller.Config{
		StallTimeout: cfg.Recording.StallTimeout,
		ShutdownHold: cfg.Display.ShutdownHold,
		BlankHold:    cfg.Display.BlankHold,
	}, deps)

	// Step 12: HTTP remote control.
	var gatherer prometheus.Gatherer
	if cfg.Observability.Metrics.Enabled {
		gatherer = reg
	}
	router := transport.NewRouter(transport.Dependencies{
		Commander:   arb,
		Recording:   lifecycle.Filename,
		Logger:      logger.Named("http"),
		Metrics:     metrics,
		Gatherer:    gatherer,
		MetricsPath: cfg.Observability.Metrics.Path,
		Readiness: observability.ReadinessChecks{
			Required: map[string]observability.HealthChecker{
				"dispatch": observability.HealthCheckFunc(func(context.Context) error {
					if arb.IsClosed() {
						return errors.New("shutting down")
					}
					return nil
				}),
			},
			Optional: map[string]observability.HealthChecker{
				"recording": observability.HealthCheckFunc(func(context.Context) error {
					if s := lifecycle.Session(); s == nil || !s.Active() {
						return errors.New("not recording")
					}
					return nil
				}),
				"buttons": observability.HealthCheckFunc(func(context.Context) error {
					if pins == nil {
						return errors.New("gpio unavailable")
					}
					return nil
				}),
			},
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	loopCtx, loopCancel := context.WithCancel(ctx)
	defer loopCancel()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			loopCancel()
		}
	}()

	logger.Info("inspector started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("checklist", content.Title),
		zap.String("recording", lifecycle.Filename()),
		zap.Bool("buttons", pins != nil),
	)

	// Step 13: Main loop. Run performs the ordered shutdown before it
	// returns, whether it stopped on a signal or on a fault.
	runErr := ctrl.Run(loopCtx)
	if runErr != nil {
		logger.Error("main loop failed", zap.Error(runErr))
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return runErr
}

// startEvents connects the MQTT feed when enabled and starts publishing. The
// returned stop function flushes queued events and disconnects; it is safe to
// call when events are disabled.
func startEvents(cfg config.EventsConfig, logger *zap.Logger) (*events.Emitter, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}

	encode, err := events.EncoderFor(cfg.Encoding)
	if err != nil {
		return nil, nil, err
	}
	device := cfg.ClientID
	if device == "" {
		if device, err = os.Hostname(); err != nil {
			device = "inspector"
		}
	}
	client, err := events.DialMQTT(cfg, device, logger)
	if err != nil {
		return nil, nil, err
	}

	emitter := events.NewEmitter(client, path.Join(cfg.TopicPrefix, device), device,
		events.WithEncoder(encode),
		events.WithBuffer(cfg.Buffer),
		events.WithLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		emitter.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done
		client.Close()
	}
	return emitter, stop, nil
}

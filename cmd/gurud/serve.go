package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/floguru/gurucore/internal/bridge"
	"github.com/floguru/gurucore/internal/channels/telegram"
	"github.com/floguru/gurucore/internal/config"
	"github.com/floguru/gurucore/internal/gateway"
	"github.com/floguru/gurucore/internal/httpapi"
	"github.com/floguru/gurucore/internal/logger"
	"github.com/floguru/gurucore/internal/notify"
	"github.com/floguru/gurucore/internal/router"
	"github.com/floguru/gurucore/internal/scheduler"
	"github.com/floguru/gurucore/internal/workers"
)

var (
	serveConfigPath string
	serveDebug      bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gurud daemon",
	Long: `Start the daemon: spawn the worker subprocess, schedule configured
automations, connect chat channels, and expose the HTTP API.`,
	RunE: serveHandler,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", defaultConfigPath, "Path to configuration file")
	serveCmd.Flags().BoolVarP(&serveDebug, "debug", "d", false, "Enable debug logging")
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", e)
		}
		return fmt.Errorf("configuration validation failed with %d errors", len(errs))
	}

	if serveDebug {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Info("starting gurud",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "config", Value: serveConfigPath})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker bridge. The worker reads the same config file for its decision
	// weights.
	workerArgs := append(append([]string{}, cfg.Bridge.Args...), "-config", serveConfigPath)
	br := bridge.New(bridge.Config{
		Command:               cfg.Bridge.Command,
		Args:                  workerArgs,
		Restart:               cfg.Bridge.Restart,
		RestartMaxAttempts:    cfg.Bridge.RestartMaxAttempts,
		RestartInitialBackoff: time.Duration(cfg.Bridge.RestartInitialBackoffMS) * time.Millisecond,
		RestartMaxBackoff:     time.Duration(cfg.Bridge.RestartMaxBackoffMS) * time.Millisecond,
	}, log)
	if err := br.Start(); err != nil {
		return fmt.Errorf("failed to start worker bridge: %w", err)
	}
	defer func() { _ = br.Close() }()

	rt, err := router.New(log)
	if err != nil {
		return fmt.Errorf("failed to load guru routes: %w", err)
	}

	executor := &timeoutExecutor{
		bridge:  br,
		timeout: time.Duration(cfg.Bridge.ExecuteTimeoutSeconds) * time.Second,
	}
	gw := gateway.New(log, rt, executor, nil)

	if cfg.Channels.Telegram.Enabled {
		conn := telegram.New(cfg.Channels.Telegram, log, gw)
		// Install the reply path before polling starts so the first inbound
		// message can already be answered.
		gw.SetChannels(conn)
		if err := conn.Start(ctx); err != nil {
			return fmt.Errorf("failed to start telegram connector: %w", err)
		}
		defer conn.Stop()
		log.Info("telegram connector started",
			logger.Field{Key: "token", Value: config.MaskTelegramToken(cfg.Channels.Telegram.Token)})
	}

	pool := workers.NewPool(cfg.Workers.PoolSize, cfg.Workers.QueueSize, log)
	pool.Start()
	defer pool.Stop()

	execute := func(ctx context.Context, automationID string) error {
		return pool.Do(ctx, workers.Task{
			ID:   automationID,
			Kind: "automation",
			Run: func(ctx context.Context) error {
				return gw.ExecuteAutomation(ctx, automationID)
			},
		})
	}

	sched := scheduler.New(log, cfg.Scheduler.DefaultTimezone, execute, notify.NewLogNotifier(log))
	sched.Start(ctx)
	defer sched.Stop()

	for _, a := range cfg.Automations {
		trigger := scheduler.Trigger{Time: a.Time, Days: a.Days, Timezone: a.Timezone}
		gw.Register(gateway.Automation{
			ID:      a.ID,
			Name:    a.Name,
			Guru:    router.GuruID(a.Guru),
			Task:    a.Task,
			Trigger: trigger,
		})
		if err := sched.ScheduleAutomation(a.ID, trigger); err != nil {
			log.Error("failed to schedule automation", err,
				logger.Field{Key: "automation_id", Value: a.ID})
		}
	}

	srv := httpapi.New(httpapi.Config{
		ListenAddr:     cfg.Gateway.ListenAddr,
		MetricsEnabled: cfg.Gateway.MetricsEnabled,
	}, log, sched, gw)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", logger.Field{Key: "signal", Value: sig.String()})
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", err)
	}

	log.Info("gurud stopped gracefully")
	return nil
}

// timeoutExecutor bounds each bridge call with the configured deadline.
type timeoutExecutor struct {
	bridge  *bridge.Bridge
	timeout time.Duration
}

func (e *timeoutExecutor) Execute(ctx context.Context, command any) (map[string]any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.bridge.Execute(ctx, command)
}

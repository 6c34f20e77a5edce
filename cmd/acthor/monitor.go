package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/zberg/go-acthor/pkg/acthor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the control loop and export Prometheus metrics",
	Long: `Connects to the device, runs the polling/control loop and serves
device metrics on /metrics until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadMonitorConfig(configPath)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		host := cfg.Host
		if targetHost != "" {
			host = targetHost
		}
		if host == "" {
			fmt.Println("no host: set --host or the config file's host key")
			os.Exit(1)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(),
		}))

		opts := []acthor.ClientOption{
			acthor.WithTimeout(cfg.timeout()),
			acthor.WithInterval(cfg.pollInterval()),
			acthor.WithLogger(logger),
		}
		if cfg.SlowIntervalMs > 0 {
			opts = append(opts, acthor.WithSlowInterval(cfg.slowInterval()))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		device, err := acthor.Connect(ctx, host, opts...)
		if err != nil {
			logger.Error("connect failed", "host", host, "error", err)
			os.Exit(1)
		}
		defer device.Disconnect()

		if cfg.OverrideMode != "" {
			mode, err := acthor.ParseOverrideMode(cfg.OverrideMode)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			if err := device.SetPowerOverride(ctx, 0, mode); err != nil {
				logger.Error("set override mode failed", "error", err)
			}
		}

		registerMetrics()
		device.Subscribe(acthor.EventAfterUpdate, func(args ...any) {
			updateMetrics(device)
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.Listen, Handler: mux}
		go func() {
			logger.Info("serving metrics", "addr", cfg.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()

		device.Start()
		logger.Info("control loop running", "device", device.SerialNumber())

		<-ctx.Done()
		logger.Info("shutting down")

		device.Stop()
		_ = server.Close()
	},
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Command rgpu-serverd is the backend daemon: it owns a simulated (or, on
// a platform with the real libraries available, a dynamically loaded)
// CUDA/Vulkan driver, advertises its GPUs, and executes commands forwarded
// by client daemons over an authenticated connection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/server/listener"
	"github.com/Fill84/RGPU-sub000/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rgpu-serverd",
		Short: "RGPU backend daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to server config file (TOML or YAML)")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, err := transport.ParseKind(cfg.Transport)
	if err != nil {
		return err
	}
	ln, err := transport.ListenKind(ctx, kind, cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.BindAddr, err)
	}

	devices := gpu.Discover(cfg.SimulatedGPUs)
	srv := listener.New(cfg, gpu.NewSimulatedCudaDriver(devices), gpu.NewSimulatedVulkanDriver(devices))
	logger.InfoCtx(ctx, "rgpu-serverd: starting", "bind_addr", cfg.BindAddr, "transport", cfg.Transport, "server_id", cfg.ServerID)
	return srv.Run(ctx, ln)
}

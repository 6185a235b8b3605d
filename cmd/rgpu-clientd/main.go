// Command rgpu-clientd is the client-side daemon: it maintains a
// Supervisor connection to every configured backend, tracks the merged
// virtual GPU pool, and exposes a local IPC socket for the CUDA and
// Vulkan interpose shims loaded into application processes on this host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fill84/RGPU-sub000/internal/client/daemon"
	"github.com/Fill84/RGPU-sub000/internal/client/ipc"
	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/logger"
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
		Use:   "rgpu-clientd",
		Short: "RGPU client daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to client config file (TOML or YAML)")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg)
	ipcSrv := ipc.New(cfg.IPCSocket, d)

	logger.InfoCtx(ctx, "rgpu-clientd: starting", "ipc_socket", cfg.IPCSocket, "backends", len(cfg.Backends))

	var wg sync.WaitGroup
	var ipcErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		d.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		ipcErr = ipcSrv.Run(ctx)
	}()
	wg.Wait()

	if ipcErr != nil {
		return fmt.Errorf("ipc server: %w", ipcErr)
	}
	return nil
}

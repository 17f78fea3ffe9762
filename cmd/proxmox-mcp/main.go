package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcourtman/proxmox-mcp/internal/config"
	"github.com/rcourtman/proxmox-mcp/internal/guestexec"
	"github.com/rcourtman/proxmox-mcp/internal/logging"
	"github.com/rcourtman/proxmox-mcp/internal/mcp"
	"github.com/rcourtman/proxmox-mcp/internal/tasks"
	"github.com/rcourtman/proxmox-mcp/internal/tools"
	"github.com/rcourtman/proxmox-mcp/pkg/proxmox"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "proxmox-mcp",
	Short:   "MCP server exposing Proxmox VE management tools",
	Long:    `proxmox-mcp is an MCP (Model Context Protocol) server that lets AI assistants manage Proxmox Virtual Environment clusters: VMs, containers, storage, backups and tasks.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("proxmox-mcp %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "proxmox-mcp",
	})

	log.Info().
		Str("version", Version).
		Str("host", cfg.Host).
		Msg("Starting proxmox-mcp")

	client, err := proxmox.NewClient(proxmox.ClientConfig{
		Host:        cfg.Host,
		User:        cfg.User,
		TokenName:   cfg.TokenName,
		TokenValue:  cfg.TokenValue,
		Fingerprint: cfg.Fingerprint,
		VerifySSL:   cfg.VerifySSL,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("creating Proxmox client: %w", err)
	}

	mcp.ServerVersion = Version

	monitor := tasks.NewMonitor(client)
	guest := guestexec.NewExecutor(client)
	executor := tools.NewExecutor(client, monitor, guest)
	server := mcp.NewServer(cfg.ListenAddr, executor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("MCP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

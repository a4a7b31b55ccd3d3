package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/rzbill/spool/internal/cmd/client"
	serverrun "github.com/rzbill/spool/internal/cmd/server"
	cfgpkg "github.com/rzbill/spool/internal/config"
	logpkg "github.com/rzbill/spool/pkg/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spool",
		Short: "spool durable telemetry buffer",
		Long:  "spool stores telemetry records durably on local disk and forwards them upstream in batches.",
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("SPOOL_CONFIG"), "Config file (.yaml, .yml or .json)")

	// init
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(args[0]); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", args[0])
			}
			b, err := yaml.Marshal(cfgpkg.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], b, 0o644); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "wrote", args[0])
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initCmd)

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start spool (HTTP, gRPC and the flush loop)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logpkg.ApplyConfig(&cfg.Log)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg, Logger: logger}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("backend", "", "Storage backend: pebble|sqlite|memory")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (empty keeps the configured one)")
	serverStartCmd.Flags().String("grpc", "", "gRPC listen address (empty keeps the configured one)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("ingestion-url", "", "Upstream ingestion base URL")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// config show
	configCmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Ingestion.AppSecret != "" {
				cfg.Ingestion.AppSecret = "[REDACTED]"
			}
			if cfg.Ingestion.AuthToken != "" {
				cfg.Ingestion.AuthToken = "[REDACTED]"
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})
	rootCmd.AddCommand(configCmd)

	// group and health commands against a running server
	clientcmd.AddCommands(rootCmd, apiURL)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the config file, SPOOL_* variables and explicitly set
// flags over the defaults, then validates the result.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	override := func(flag string, dst *string) {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	override("data-dir", &cfg.DataDir)
	override("backend", &cfg.Backend)
	override("http", &cfg.HTTPAddr)
	override("grpc", &cfg.GRPCAddr)
	override("fsync", &cfg.Fsync)
	override("ingestion-url", &cfg.Ingestion.URL)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return cfgpkg.Config{}, err
	}
	return cfg, nil
}

func apiURL() string {
	if v := os.Getenv("SPOOL_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

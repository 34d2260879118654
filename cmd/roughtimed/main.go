// Command roughtimed runs a batching Roughtime server (spec.md §4.4).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/ed25519"

	"github.com/int08h/roughenough/backend"
	"github.com/int08h/roughenough/internal/config"
	"github.com/int08h/roughenough/internal/stats"
	"github.com/int08h/roughenough/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "roughtimed",
		Short: "Roughtime batching time server",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the supported protocol version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "roughtime protocol version 1")
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file (defaults built in if omitted)")
	return cmd
}

func serve(configPath string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := config.Defaults()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	var longTerm *backend.InMemory
	if cfg.SeedHex != "" {
		seed, err := hex.DecodeString(cfg.SeedHex)
		if err != nil || len(seed) != ed25519.SeedSize {
			return fmt.Errorf("seed_hex must be %d hex-encoded bytes", ed25519.SeedSize)
		}
		longTerm = backend.NewInMemory(ed25519.NewKeyFromSeed(seed))
	} else {
		longTerm, err = backend.GenerateInMemory()
		if err != nil {
			return fmt.Errorf("generating long-term key: %w", err)
		}
	}

	km, err := server.Bootstrap(longTerm, time.Now(), &cfg)
	if err != nil {
		return fmt.Errorf("bootstrapping delegation: %w", err)
	}

	sink := stats.NewSink(prometheus.DefaultRegisterer)
	srv := server.New(&cfg, longTerm, km, sink, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.ListenAndServe(ctx)
}

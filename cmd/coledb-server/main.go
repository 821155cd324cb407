// Command coledb-server runs the network-facing coledb engine: it
// loads a TOML config (optionally overridden by flags), opens the
// in-memory ordered store under MVCC, and serves SQL connections
// until interrupted.
//
// Grounded on original_source/src/bin/dbserver.rs for the startup
// sequence (parse flags, load config, build the store, log the
// listen address, serve), adapted to cobra/pflag the way
// Pieczasz-smf's cmd/smf/main.go wires a root command's flags.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coledb/coledb/internal/config"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/server"
	"github.com/coledb/coledb/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "coledb-server",
		Short: "Serve coledb's SQL dialect over the network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a coledb.toml config file")
	cmd.Flags().String("listen-addr", "", "address to listen on, e.g. 127.0.0.1:7878")
	cmd.Flags().String("storage-dir", "", "reserved for a future on-disk store")
	cmd.Flags().String("log-level", "", "logrus level: trace, debug, info, warn, error")
	cmd.Flags().String("node-id", "", "this node's persistent identifier")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyFlags(cmd.Flags())

	level, err := cfg.ParsedLogLevel()
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	engine := mvcc.New(store.NewBTreeStore())
	if err := cfg.ResolveNodeID(engine); err != nil {
		return err
	}
	logrus.Infof("coledb node %s starting, listening on %s", cfg.NodeID, cfg.ListenAddr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(engine, cfg.ListenAddr)
	return srv.ListenAndServe(ctx)
}

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/config"
	"github.com/dreamware/worldgate/internal/metrics"
)

var (
	openWorldsConfig string
	openWorldsServer string
)

// openWorldsCmd changes how many worlds a gateway fills
var openWorldsCmd = &cobra.Command{
	Use:   "open-worlds N",
	Short: "Set the open world count of a gateway",
	Long: `Writes the open world count to the shared metrics bucket. A gateway with
metrics enabled only assigns new players to its first N worlds; the change
applies to the next connection, no restart needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runOpenWorlds,
}

func init() {
	openWorldsCmd.Flags().StringVar(&openWorldsConfig, "config", config.DefaultPath, "gateway config naming the metrics bucket")
	openWorldsCmd.Flags().StringVar(&openWorldsServer, "server", "", "server name (defaults to server_name from the config)")
}

func runOpenWorlds(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("open world count must be a non-negative integer, got %q", args[0])
	}

	cfg, err := config.LoadAndValidate(openWorldsConfig)
	if err != nil {
		return err
	}
	if cfg.Metrics.NATSURL == "" {
		return errors.New("metrics.nats_url is required to reach a running gateway")
	}
	server := openWorldsServer
	if server == "" {
		server = cfg.ServerName
	}

	ctx := commandContext(cmd)
	store, nc, err := dialNATSStore(ctx, cfg.Metrics.NATSURL, cfg.Metrics.Bucket)
	if err != nil {
		return err
	}
	defer nc.Close()

	backend := metrics.NewKVBackend(store, server, nil, zap.NewNop())
	if err := backend.SetOpenWorldCount(ctx, server, n); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: open worlds set to %d\n", server, n)
	return nil
}

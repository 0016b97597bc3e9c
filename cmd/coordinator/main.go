// Command coordinator runs a worldgate gateway and its operator tools.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/config"
	"github.com/dreamware/worldgate/internal/logging"
)

var (
	defaultConfigPath string
	embeddedNATS      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "worldgate gateway: assigns players to worlds and balances population",
	Long: `coordinator hosts a fixed set of game worlds behind one websocket endpoint.

New connections are assigned to a world: the first one with room when metrics
are disabled, the least loaded of the open worlds when they are enabled.
Several gateways can share one NATS KV bucket to report a cluster-wide
player total to every world.`,
	SilenceUsage: true,
}

// serveCmd runs the gateway
var serveCmd = &cobra.Command{
	Use:   "serve [config]",
	Short: "Run the gateway",
	Long: `Loads the config file given as argument (or $WORLDGATE_CONFIG), falling
back to the default config path, and serves until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&defaultConfigPath, "default-config", config.DefaultPath, "config used when the custom one cannot be read")
	serveCmd.Flags().BoolVar(&embeddedNATS, "embedded-nats", false, "store metrics in an in-process NATS server")

	rootCmd.AddCommand(serveCmd, statusCmd, openWorldsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	custom := config.ResolvePath(arg)

	cfg, path, err := config.LoadFirst(custom, defaultConfigPath)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Server cannot start without any configuration file.")
		return err
	}
	if embeddedNATS {
		cfg.Metrics.Embedded = true
		cfg.Metrics.NATSURL = ""
	}

	logger, err := logging.New(cfg.DebugLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting worldgate gateway",
		zap.String("default_config", defaultConfigPath),
		zap.String("custom_config", custom),
		zap.String("config", path))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	g, err := newGateway(ctx, cfg, logger, reg)
	if err != nil {
		logger.Error("gateway setup failed", zap.Error(err))
		return err
	}

	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		g.close()
		return fmt.Errorf("listen: %w", err)
	}
	return g.run(ctx, ln)
}

// commandContext returns the command's context, never nil.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

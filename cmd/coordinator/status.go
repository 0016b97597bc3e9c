package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/worldgate/internal/cluster"
	"github.com/dreamware/worldgate/internal/config"
)

var (
	statusAddrs  []string
	statusConfig string
	statusJSON   bool
)

// statusCmd queries running gateways
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-world occupancy of running gateways",
	Long: `Queries GET /status on each gateway. Addresses come from --addr, or from
the game_servers entries of --config that carry an addr.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringSliceVar(&statusAddrs, "addr", nil, "gateway address (repeatable)")
	statusCmd.Flags().StringVar(&statusConfig, "config", "", "read gateway addresses from this config")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	gateways, err := statusTargets()
	if err != nil {
		return err
	}

	statuses := cluster.FetchAll(commandContext(cmd), gateways)
	out := cmd.OutOrStdout()

	if statusJSON {
		enc := json.NewEncoder(out)
		for _, s := range statuses {
			if s.Err != nil {
				continue
			}
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
	}

	failed := 0
	for _, s := range statuses {
		if s.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", s.Gateway.Name, s.Err)
			continue
		}
		if !statusJSON {
			fmt.Fprintf(out, "%s\t%v\t%d players\n", s.Gateway.Name, s.Worlds, s.Total())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d gateways unreachable", failed, len(statuses))
	}
	return nil
}

func statusTargets() ([]cluster.GatewayInfo, error) {
	var gateways []cluster.GatewayInfo
	for _, addr := range statusAddrs {
		gateways = append(gateways, cluster.GatewayInfo{Name: addr, Addr: addr})
	}

	if statusConfig != "" {
		cfg, err := config.LoadAndValidate(statusConfig)
		if err != nil {
			return nil, err
		}
		for _, gs := range cfg.GameServers {
			if gs.Addr != "" {
				gateways = append(gateways, cluster.GatewayInfo{Name: gs.Name, Addr: gs.Addr})
			}
		}
	}

	if len(gateways) == 0 {
		gateways = append(gateways, cluster.GatewayInfo{Name: "local", Addr: "localhost:8000"})
	}
	return gateways, nil
}

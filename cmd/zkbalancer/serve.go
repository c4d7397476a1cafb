package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/manager"
	"github.com/cuemby/zkbalancer/pkg/metrics"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the balancer",
	Long: `Run the balancer in the foreground.

Starts the metrics collector, the rebalance scheduler (unless disabled),
the event forwarder and the HTTP endpoint serving /metrics, /health,
/ready and /live. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics.SetVersion(Version)

		mgr, err := manager.NewManager(cfg)
		if err != nil {
			return fmt.Errorf("failed to create manager: %w", err)
		}
		if err := mgr.Start(); err != nil {
			_ = mgr.Shutdown(context.Background())
			return fmt.Errorf("failed to start manager: %w", err)
		}

		logger := log.WithComponent("cli")
		logger.Info().
			Str("version", Version).
			Str("metrics_addr", cfg.Metrics.Addr).
			Msg("zkbalancer is running, press Ctrl+C to stop")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mgr.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown: %w", err)
		}

		logger.Info().Msg("Shutdown complete")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every node and show the cluster state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			status := mgr.Collector().Refresh(ctx)
			return render(cmd.OutOrStdout(), status, func(tw *tabwriter.Writer) {
				printNodes(tw, status)
			})
		})
	},
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show cluster state, stored files, tasks and mirrored metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			overview, err := mgr.Overview(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), overview, func(tw *tabwriter.Writer) {
				printNodes(tw, overview.Cluster)
				fmt.Fprintln(tw)
				counts := map[string]int{}
				for _, f := range overview.Files {
					counts[f.Node]++
				}
				fmt.Fprintln(tw, "NODE\tFILES")
				for _, node := range mgr.Nodes() {
					fmt.Fprintf(tw, "%s\t%d\n", node, counts[node])
				}
				fmt.Fprintln(tw)
				fmt.Fprintf(tw, "Files:\t%d\n", len(overview.Files))
				fmt.Fprintf(tw, "Tasks:\t%d\n", len(overview.Tasks))
				fmt.Fprintf(tw, "Mirrored:\t%d\n", len(overview.Mirrored))
			})
		})
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the current rebalance plan without executing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			plan, err := mgr.Scheduler().Diagnostics(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), plan, func(tw *tabwriter.Writer) {
				printPlan(tw, plan)
			})
		})
	},
}

var rebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Run one plan-and-execute iteration",
	Long: `Build a rebalance plan and, when it recommends a migration, move
exactly one file from the source node to the target node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			result, err := mgr.Scheduler().RunOnce(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
				if result.Executed {
					fmt.Fprintf(tw, "Migrated one file from %s to %s\n", result.Before.SourceNode, result.Before.TargetNode)
				} else {
					fmt.Fprintln(tw, "No migration executed")
				}
				fmt.Fprintln(tw)
				printPlan(tw, result.After)
			})
		})
	},
}

func printNodes(tw *tabwriter.Writer, status types.ClusterStatus) {
	fmt.Fprintln(tw, "NODE\tENDPOINT\tSTATE\tLATENCY\tCONNECTIONS\tDRAINED\tERROR")
	for _, n := range status.Nodes {
		latency, connections := "-", "-"
		if v, ok := n.Metrics["zk_avg_latency"]; ok {
			latency = v.String()
		}
		if v, ok := n.Metrics["zk_num_alive_connections"]; ok {
			connections = v.String()
		}
		drained := "no"
		if n.Drained {
			drained = "yes"
			if n.DrainReason != "" {
				drained += " (" + n.DrainReason + ")"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.Node, n.Endpoint, n.State, latency, connections, drained, dash(n.Error))
	}
	fmt.Fprintf(tw, "\nLeader:\t%s\n", dash(status.Leader))
}

func printPlan(tw *tabwriter.Writer, plan types.Plan) {
	fmt.Fprintln(tw, "NODE\tFILES\tDRAINED")
	for _, node := range plan.Nodes {
		drained := "no"
		if plan.NodeStates[node].Drained {
			drained = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", node, plan.Counts[node], drained)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Total files:\t%d\n", plan.TotalFiles)
	fmt.Fprintf(tw, "Threshold:\t%d\n", plan.Threshold)
	fmt.Fprintf(tw, "Delta:\t%d\n", plan.Delta)
	fmt.Fprintf(tw, "Source:\t%s\n", dash(plan.SourceNode))
	fmt.Fprintf(tw, "Target:\t%s\n", dash(plan.TargetNode))
	fmt.Fprintf(tw, "Should migrate:\t%t\n", plan.ShouldMigrate)
	fmt.Fprintf(tw, "Reason:\t%s\n", plan.Reason)
	if plan.Message != "" {
		fmt.Fprintf(tw, "Message:\t%s\n", plan.Message)
	}
	if plan.Candidate != nil {
		fmt.Fprintf(tw, "Candidate:\t#%d %s on %s\n", plan.Candidate.ID, plan.Candidate.Filename, plan.Candidate.Node)
	}
}

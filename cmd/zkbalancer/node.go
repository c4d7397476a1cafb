package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/cuemby/zkbalancer/pkg/manager"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/spf13/cobra"
)

// Node commands
var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage node drain state",
}

var nodeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured nodes with their drain state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			states, err := mgr.NodeStates().GetStates()
			if err != nil {
				return err
			}
			for _, node := range mgr.Nodes() {
				if _, ok := states[node]; !ok {
					states[node] = types.DrainState{}
				}
			}
			return render(cmd.OutOrStdout(), states, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NODE\tDRAINED\tREASON\tUPDATED")
				for _, node := range mgr.Nodes() {
					st := states[node]
					fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", node, st.Drained, dash(st.Reason), formatTime(st.UpdatedAt))
				}
			})
		})
	},
}

var nodeDrainCmd = &cobra.Command{
	Use:   "drain NODE",
	Short: "Exclude a node from placement and evacuate its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return setDrain(cmd, args[0], true, reason)
	},
}

var nodeUndrainCmd = &cobra.Command{
	Use:   "undrain NODE",
	Short: "Return a drained node to service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDrain(cmd, args[0], false, "")
	},
}

func setDrain(cmd *cobra.Command, node string, drained bool, reason string) error {
	return withManager(func(ctx context.Context, mgr *manager.Manager) error {
		state, err := mgr.NodeStates().SetDrain(node, drained, reason, actor)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), map[string]types.DrainState{node: state}, func(tw *tabwriter.Writer) {
			if state.Drained {
				fmt.Fprintf(tw, "✓ Node %s drained\n", node)
			} else {
				fmt.Fprintf(tw, "✓ Node %s returned to service\n", node)
			}
		})
	})
}

func init() {
	nodeCmd.AddCommand(nodeListCmd)
	nodeCmd.AddCommand(nodeDrainCmd)
	nodeCmd.AddCommand(nodeUndrainCmd)

	nodeDrainCmd.Flags().String("reason", "", "Reason recorded with the drain")
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/cuemby/zkbalancer/pkg/artifact"
	"github.com/cuemby/zkbalancer/pkg/manager"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/spf13/cobra"
)

// File commands
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage stored files",
}

var fileUploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a local file",
	Long: `Upload a local file to the least loaded node that is not drained,
or to the node given with --node.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(args[0])
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()

		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			a, err := mgr.Artifacts().Upload(ctx, artifact.UploadRequest{
				Filename: name,
				Reader:   f,
				Node:     node,
				Actor:    actor,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "✓ Stored %s as #%d on %s (%d bytes)\n", a.Filename, a.ID, a.Node, a.SizeBytes)
			})
		})
	},
}

var fileGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create random demo files",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		sizeKB, _ := cmd.Flags().GetInt("size-kb")
		node, _ := cmd.Flags().GetString("node")

		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			result, err := mgr.Artifacts().Generate(ctx, artifact.GenerateRequest{
				Count:  count,
				SizeKB: sizeKB,
				Node:   node,
				Actor:  actor,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "✓ Generated %d files\n\n", len(result.Created))
				fmt.Fprintln(tw, "NODE\tCREATED")
				for _, n := range mgr.Nodes() {
					fmt.Fprintf(tw, "%s\t%d\n", n, result.PerNode[n])
				}
			})
		})
	},
}

var fileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored files, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			all, err := mgr.Artifacts().List()
			if err != nil {
				return err
			}
			files := make([]*types.Artifact, 0, len(all))
			for _, a := range all {
				if node == "" || a.Node == node {
					files = append(files, a)
				}
			}
			return render(cmd.OutOrStdout(), files, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tNODE\tCREATED\tLAST ACTION")
				for _, a := range files {
					last := "-"
					if n := len(a.History); n > 0 {
						last = a.History[n-1].Action
					}
					fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", a.ID, a.Filename, a.SizeBytes, a.Node, formatTime(a.CreatedAt), last)
				}
			})
		})
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a stored file and its record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			if err := mgr.Artifacts().Delete(ctx, id, actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ File #%d deleted\n", id)
			return nil
		})
	},
}

var fileMirroredCmd = &cobra.Command{
	Use:   "mirrored",
	Short: "List metadata documents held by the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			entries, err := mgr.Mirror().List(ctx)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "KEY\tNODE\tFILENAME\tMODIFIED")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%v\t%v\t%s\n", e.Key, docField(e.Document, "node"), docField(e.Document, "filename"), formatTime(e.ModifiedAt))
				}
			})
		})
	},
}

func docField(doc map[string]any, key string) any {
	if v, ok := doc[key]; ok && v != nil {
		return v
	}
	return "-"
}

func init() {
	fileCmd.AddCommand(fileUploadCmd)
	fileCmd.AddCommand(fileGenerateCmd)
	fileCmd.AddCommand(fileListCmd)
	fileCmd.AddCommand(fileDeleteCmd)
	fileCmd.AddCommand(fileMirroredCmd)

	fileUploadCmd.Flags().String("node", "", "Pin the file to this node")
	fileUploadCmd.Flags().String("name", "", "Stored filename (defaults to the local file name)")

	fileGenerateCmd.Flags().Int("count", 10, "Number of files to create")
	fileGenerateCmd.Flags().Int("size-kb", 4, "Size of each file in KB")
	fileGenerateCmd.Flags().String("node", "", "Pin every file to this node")

	fileListCmd.Flags().String("node", "", "Only show files on this node")
}

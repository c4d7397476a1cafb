package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cuemby/zkbalancer/pkg/config"
	"github.com/cuemby/zkbalancer/pkg/log"
	"github.com/cuemby/zkbalancer/pkg/manager"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	output     string
	actor      string

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zkbalancer",
	Short: "zkbalancer - file balancer for a ZooKeeper ensemble",
	Long: `zkbalancer monitors a ZooKeeper ensemble and keeps uploaded files
evenly spread across its nodes.

It probes every node with the mntr four-letter command, stores artifact
records in a local database, honours operator drain decisions and
migrates one file at a time from the busiest node to the idlest one.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}

		// One-shot commands write results to stdout; keep logs off it
		log.Init(log.Config{
			Level:      log.ParseLevel(loaded.Logging.Level),
			JSONOutput: loaded.Logging.Format == "json",
			Output:     os.Stderr,
		})

		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zkbalancer version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "Actor recorded in the audit log")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(overviewCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(rebalanceCmd)
	rootCmd.AddCommand(nodeCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(opsCmd)
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}

// withManager builds a manager for a one-shot command and shuts it down
// when fn returns
func withManager(fn func(ctx context.Context, mgr *manager.Manager) error) error {
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	ctx := context.Background()
	runErr := fn(ctx, mgr)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}
	return runErr
}

// render writes v as JSON or YAML when requested, otherwise calls table
func render(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch strings.ToLower(output) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

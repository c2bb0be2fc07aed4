package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/impactlane/vouch/internal/config"
	"github.com/impactlane/vouch/internal/store"
)

var (
	usageDBOverride string
	usageJSONOutput bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and repair storage accounting",
	Long:  "Show per-initiative storage usage and recompute counters without running the server.",
}

var usageShowCmd = &cobra.Command{
	Use:   "show <initiative-id>",
	Short: "Show storage usage for an initiative",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsageShow,
}

var usageRecomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute storage counters from evidence file rows",
	Args:  cobra.NoArgs,
	RunE:  runUsageRecompute,
}

func init() {
	usageCmd.PersistentFlags().StringVar(&usageDBOverride, "db", "",
		"Database path (overrides config and VOUCH_DB_PATH)")
	usageCmd.PersistentFlags().BoolVar(&usageJSONOutput, "json", false,
		"Output in JSON format")

	usageCmd.AddCommand(usageShowCmd)
	usageCmd.AddCommand(usageRecomputeCmd)
	rootCmd.AddCommand(usageCmd)
}

// resolveStore opens the store directly, bypassing the server.
func resolveStore() (store.Store, error) {
	path := usageDBOverride
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Database.Path
	}
	return store.NewSQLiteStore(path)
}

func runUsageShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Usage(ctx, args[0])
	if err != nil {
		return fmt.Errorf("read usage: %w", err)
	}

	if usageJSONOutput {
		return printJSON(cmd.OutOrStdout(), stats)
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "INITIATIVE\tFILES\tUSED")
	fmt.Fprintf(w, "%s\t%d\t%s\n", args[0], stats.FileCount, formatSize(stats.UsedBytes))
	w.Flush()
	return nil
}

func runUsageRecompute(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	corrected, err := db.RecomputeStorageUsage(ctx)
	if err != nil {
		return fmt.Errorf("recompute usage: %w", err)
	}

	if usageJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"corrected": corrected})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Corrected %d counter(s).\n", corrected)
	return nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

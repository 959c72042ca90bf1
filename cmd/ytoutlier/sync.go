package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ytoutlier/channelsync"
)

func newSyncCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <channel-id>",
		Short: "Sync one tracked channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "sync", true)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.syncer().SyncChannel(cmd.Context(), args[0])
			return printResults(cmd.OutOrStdout(), flags, []channelsync.SyncResult{res})
		},
	}
}

func newBatchCommand(flags *rootFlags) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "batch <channel-id>...",
		Short: "Sync several channels in concurrent chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "batch", true)
			if err != nil {
				return err
			}
			defer a.Close()

			results := a.syncer().SyncChannels(cmd.Context(), args, concurrency)
			return printResults(cmd.OutOrStdout(), flags, results)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "channels synced at once (default from config)")
	return cmd
}

func newDueCommand(flags *rootFlags) *cobra.Command {
	var (
		limit  int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Sync channels whose last sync is stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "due", !dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 {
				limit = a.cfg.DueLimit
			}
			s := a.syncer()

			if dryRun {
				ids, err := s.ChannelsNeedingSync(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			}

			results, err := s.SyncDue(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No channels due for sync.")
				return nil
			}
			return printResults(cmd.OutOrStdout(), flags, results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum channels to sync (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the channels that are due")
	return cmd
}

// printResults writes results as a table or JSON and fails when any sync
// failed.
func printResults(out io.Writer, flags *rootFlags, results []channelsync.SyncResult) error {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}

	if flags.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tSTATUS\tADDED\tUPDATED\tOUTLIERS\tTRANSCRIPTS\tDURATION\tERROR")
		for _, r := range results {
			status := "ok"
			if !r.Success {
				status = "failed"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
				r.ChannelID, status, r.VideosAdded, r.VideosUpdated, r.OutliersFound,
				r.TranscriptsFetched, r.Duration.Round(time.Millisecond), r.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d channel syncs failed", failed, len(results))
	}
	return nil
}

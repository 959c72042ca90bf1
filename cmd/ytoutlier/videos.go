package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ytoutlier/outlier"
	"ytoutlier/storage"
)

func newVideosCommand(flags *rootFlags) *cobra.Command {
	var outliersOnly bool
	cmd := &cobra.Command{
		Use:   "videos <channel-id>",
		Short: "List a channel's stored videos with their outlier scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "videos", false)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.store.GetChannel(cmd.Context(), args[0]); err != nil {
				return err
			}
			videos, err := a.store.ListVideosByChannel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if outliersOnly {
				videos = filterOutliers(videos)
			}

			if flags.jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(videos)
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No videos found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VIDEO ID\tTITLE\tVIEWS\tENGAGEMENT\tSCORE\tTIER\tTRANSCRIPT")
			for _, v := range videos {
				transcript := ""
				if v.Transcript != nil {
					transcript = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f%%\t%s\t%s\t%s\n",
					v.YouTubeID,
					truncate(v.Title, 50),
					v.ViewCount,
					v.EngagementRate*100,
					outlier.FormatScore(v.OutlierScore),
					outlier.TierFor(v.OutlierScore).Label,
					transcript,
				)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\nTotal: %d videos\n", len(videos))
			return nil
		},
	}
	cmd.Flags().BoolVar(&outliersOnly, "outliers", false, "only show outliers")
	return cmd
}

func filterOutliers(videos []*storage.Video) []*storage.Video {
	out := videos[:0]
	for _, v := range videos {
		if v.IsOutlier {
			out = append(out, v)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

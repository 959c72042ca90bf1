package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytoutlier/storage"
)

func newChannelCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage tracked channels",
	}
	cmd.AddCommand(newChannelAddCommand(flags), newChannelRemoveCommand(flags), newChannelListCommand(flags))
	return cmd
}

func newChannelAddCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <youtube-channel-id|@handle>",
		Short: "Start tracking a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "channel", true)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.dataAPI.FetchChannel(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ch := &storage.Channel{
				YouTubeID:       rec.ID,
				Name:            rec.Title,
				Handle:          rec.Handle,
				Description:     rec.Description,
				ThumbnailURL:    rec.ThumbnailURL,
				SubscriberCount: rec.SubscriberCount,
				VideoCount:      rec.VideoCount,
			}
			if err := a.store.CreateChannel(cmd.Context(), ch); err != nil {
				if errors.Is(err, storage.ErrAlreadyExists) {
					return fmt.Errorf("channel %s is already tracked", rec.ID)
				}
				return err
			}

			a.log.Info().Str("channel_id", ch.ID).Str("youtube_id", ch.YouTubeID).Msg("channel added")
			fmt.Fprintln(cmd.OutOrStdout(), ch.ID)
			return nil
		},
	}
}

func newChannelRemoveCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <channel-id>",
		Aliases: []string{"remove"},
		Short:   "Stop tracking a channel and delete its videos",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "channel", false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteChannel(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.log.Info().Str("channel_id", args[0]).Msg("channel removed")
			return nil
		},
	}
}

func newChannelListCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tracked channels",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags, "channel", false)
			if err != nil {
				return err
			}
			defer a.Close()

			channels, err := a.store.ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(channels)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tYOUTUBE ID\tNAME\tAVG VIEWS\tAVG ENGAGEMENT\tLAST SYNCED")
			for _, ch := range channels {
				synced := "never"
				if ch.LastSyncedAt != nil {
					synced = ch.LastSyncedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f%%\t%s\n",
					ch.ID, ch.YouTubeID, truncate(ch.Name, 30), ch.AvgViewCount, ch.AvgEngagementRate*100, synced)
			}
			return w.Flush()
		},
	}
}

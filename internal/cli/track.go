package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage the watchlist of tracked cards",
}

var trackAddCmd = &cobra.Command{
	Use:   "add <card name>",
	Short: "Start tracking a card",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TrackAdd(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

var trackRemoveCmd = &cobra.Command{
	Use:     "remove <card name>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking a card",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TrackRemove(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show tracked cards and their last checked price",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TrackList(cmd.Context(), cmd.OutOrStdout())
	},
}

var trackRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every tracked card once and send notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := getApp().Tracker.CheckAll(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("checked %d, changed %d, failed %d (%s)\n", run.Checked, run.Changed, run.Failed, run.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	trackCmd.AddCommand(trackAddCmd, trackRemoveCmd, trackListCmd, trackRunCmd)
}

package cli

import (
	"github.com/spf13/cobra"
)

var warmCacheCmd = &cobra.Command{
	Use:   "warm-cache [card names...]",
	Short: "Fetch edition lists into the local cache without recording history",
	Long:  "Fetch edition lists into the local cache without recording history. With no arguments the watchlist is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		names := args
		if len(names) == 0 {
			cards, err := a.Watchlist.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range cards {
				names = append(names, c.Name)
			}
		}
		return a.WarmCache(cmd.Context(), cmd.OutOrStdout(), names)
	},
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyPeriod string
)

var historyCmd = &cobra.Command{
	Use:   "history [search]",
	Short: "Display recorded prices for matching cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowHistory(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), historyLimit, historyPeriod)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "Most recent observations per card")
	historyCmd.Flags().StringVar(&historyPeriod, "period", "all", "week, month, 3month, year or all")
}

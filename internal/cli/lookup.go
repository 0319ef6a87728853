package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var lookupEdition string

var lookupCmd = &cobra.Command{
	Use:   "lookup <card name>",
	Short: "Price one edition of a card and record it in history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Lookup(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), lookupEdition)
	},
}

var editionsCmd = &cobra.Command{
	Use:   "editions <card name>",
	Short: "List every known edition of a card with its price",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Editions(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

func init() {
	lookupCmd.Flags().StringVarP(&lookupEdition, "edition", "e", "", "Case-insensitive edition substring")
}

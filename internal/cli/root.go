package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codyseavey/mtg-value-bot/internal/app"
	"github.com/codyseavey/mtg-value-bot/internal/config"
	"github.com/codyseavey/mtg-value-bot/internal/logging"
)

// skipAppInit marks commands that run without opening the database
const skipAppInit = "skip-app-init"

var (
	cfgFile   string
	logLevel  string
	dbPath    string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "mtgvalue",
	Short:         "Look up Magic: The Gathering card prices and track them over time",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil || cmd.Annotations[skipAppInit] == "true" {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeApp()
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails
	if cerr := closeApp(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func closeApp() error {
	if appHandle == nil {
		return nil
	}
	err := appHandle.Close()
	appHandle = nil
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Override database path defined in config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(editionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(warmCacheCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

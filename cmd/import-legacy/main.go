// import-legacy copies price history and cached edition lists from the JSON
// files written by the old bot into the SQLite database.
//
// Usage: go run main.go -db=<path> [-history=<file>] [-cache=<file>] [-execute]
//
// Without -execute the tool only reports what it would import.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/codyseavey/mtg-value-bot/internal/database"
	"github.com/codyseavey/mtg-value-bot/internal/logging"
)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite database (required)")
	historyFile := flag.String("history", "", "Legacy price history file (precios_historicos.json)")
	cacheFile := flag.String("cache", "", "Legacy edition cache file (cartas_cache.json)")
	execute := flag.Bool("execute", false, "Write to the database (default is a dry run)")
	flag.Parse()

	if *dbPath == "" || (*historyFile == "" && *cacheFile == "") {
		fmt.Println("Usage: import-legacy -db=<path> [-history=<file>] [-cache=<file>] [-execute]")
		fmt.Println("")
		fmt.Println("Imports the old bot's JSON price history and card cache.")
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Println("  # Preview what would be imported")
		fmt.Println("  import-legacy -db=./mtg_cards.db -history=precios_historicos.json -cache=cartas_cache.json")
		fmt.Println("")
		fmt.Println("  # Import")
		fmt.Println("  import-legacy -db=./mtg_cards.db -history=precios_historicos.json -execute")
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.Config{Level: "info", Format: "console"})
	dryRun := !*execute

	db, err := database.Open(*dbPath, "warn")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close(db)

	if *historyFile != "" {
		run(logger, db, "history", *historyFile, dryRun, database.ImportLegacyHistory)
	}
	if *cacheFile != "" {
		run(logger, db, "cache", *cacheFile, dryRun, database.ImportLegacyCache)
	}

	if dryRun {
		fmt.Println("\nDry run only. Re-run with -execute to write these rows.")
	}
}

type importer func(db *gorm.DB, r io.Reader, dryRun bool) (database.ImportReport, error)

func run(logger zerolog.Logger, db *gorm.DB, kind, path string, dryRun bool, fn importer) {
	f, err := os.Open(path)
	if err != nil {
		logger.Fatal().Err(err).Str("file", path).Msg("failed to open legacy file")
	}
	defer f.Close()

	report, err := fn(db, f, dryRun)
	if err != nil {
		logger.Fatal().Err(err).Str("file", path).Msgf("legacy %s import failed", kind)
	}
	logger.Info().
		Str("file", path).
		Bool("dry_run", dryRun).
		Int("keys", report.Keys).
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Msgf("legacy %s import", kind)
}

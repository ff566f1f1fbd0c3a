// Command seed imports the estimates reference dataset from a CSV export
// into the dashboard's database. It is a one-shot utility meant to run
// before the dashboard first starts, and is safe to re-run: rows are
// upserted by id.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/moseshope/scraping-admin-dashboard/internal/retry"
	"github.com/moseshope/scraping-admin-dashboard/internal/seed"
	"github.com/moseshope/scraping-admin-dashboard/internal/store"
)

func main() {
	csvPath := flag.String("csv", "estimates.csv", "path to the estimates CSV export")
	dbPath := flag.String("db", "dashboard.db", "path to the dashboard database")
	chunkSize := flag.Int("chunk", 25, "rows per insert batch")
	concurrency := flag.Int("concurrency", 8, "concurrent insert batches")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	db, err := store.New(*dbPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("db", *dbPath).Msg("failed to open store")
	}
	defer db.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		logger.Fatal().Err(err).Str("csv", *csvPath).Msg("failed to open csv")
	}
	defer f.Close()

	seeder := seed.New(db, seed.Config{
		ChunkSize:   *chunkSize,
		Concurrency: *concurrency,
		Retry:       retry.DefaultConfig(),
	}, logger)

	ctx := context.Background()
	n, err := seeder.Run(ctx, f)
	if err != nil {
		logger.Fatal().Err(err).Int64("rows_written", n).Msg("seed import failed")
	}

	total, err := db.CountEstimates(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to count estimates")
	}

	logger.Info().Int64("rows_imported", n).Int64("total_estimates", total).Msg("seed import complete")
}

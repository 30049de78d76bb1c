// Command migrate applies the core's embedded SQL migrations and exits.
package main

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Init()

	db, err := cfg.OpenDB()
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("db ping failed")
	}

	applied, err := schema.Migrate(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("migration failed")
	}

	if len(applied) == 0 {
		zlog.Info().Msg("no pending migrations")
		return
	}
	zlog.Info().Strs("applied", applied).Msg("migrations applied")
}

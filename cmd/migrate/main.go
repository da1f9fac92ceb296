package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

// migrate applies, rolls back or repairs the schema outside the API
// process. A dirty schema is cleaned with -force <version>.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "config/config.yaml"), "config file")
		up         = flag.Bool("up", false, "apply all pending migrations")
		down       = flag.Int("down", 0, "roll back N migrations")
		force      = flag.Int("force", -1, "set the schema version without running migrations")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to reach database")
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate driver")
	}

	source := cfg.Database.MigrationsPath
	if source == "" {
		source = "migrations"
	}
	if !strings.HasPrefix(source, "file://") {
		source = "file://" + source
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrate instance")
	}

	switch {
	case *force >= 0:
		if err := m.Force(*force); err != nil {
			log.Fatal().Err(err).Int("version", *force).Msg("Failed to force version")
		}
		log.Info().Int("version", *force).Msg("Schema version forced, dirty flag cleared")
	case *down > 0:
		if err := m.Steps(-*down); err != nil {
			log.Fatal().Err(err).Int("steps", *down).Msg("Rollback failed")
		}
		log.Info().Int("steps", *down).Msg("Rolled back")
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		log.Info().Msg("Schema is up to date")
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("No migrations applied")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to read schema version")
	default:
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current schema version")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/solar-crm/internal/config"
	"github.com/iliyamo/solar-crm/internal/database"
	"github.com/iliyamo/solar-crm/internal/logging"
	"github.com/iliyamo/solar-crm/migrations"
)

// usage: migrate [up|down|force N|version]
func main() {
	flag.Parse()
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)

	db, err := database.Open(context.Background(), database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MultiStatements: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migration driver")
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open embedded migrations")
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	switch command {
	case "up":
		log.Info().Msg("applying migrations")
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	case "down":
		log.Info().Msg("reverting migrations")
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("failed to revert migrations")
		}
	case "force":
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal().Str("arg", flag.Arg(1)).Msg("force needs a numeric version")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Int("version", v).Msg("failed to force migration version")
		}
	case "version":
		v, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("failed to read version")
		}
		log.Info().Uint("version", v).Bool("dirty", dirty).Msg("current migration version")
		return
	default:
		log.Error().Msgf("unknown command: %s", command)
		os.Exit(2)
	}
	log.Info().Str("command", command).Msg("migrations done")
}

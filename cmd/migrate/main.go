package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/noah-isme/bulk-pricing/internal/config"
	"github.com/noah-isme/bulk-pricing/internal/migrations"
	"github.com/noah-isme/bulk-pricing/internal/obs"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-steps n] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "migrate").Logger()

	m, err := migrations.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}

	cmd := flag.Arg(0)
	switch cmd {
	case "up", "":
		err = migrations.Up(m)
	case "down":
		err = migrations.Down(m, *steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		}
		err = verr
	default:
		flag.Usage()
		os.Exit(2)
	}
	err = errors.Join(err, migrations.Close(m))
	if err != nil {
		logger.Fatal().Err(err).Str("command", cmd).Msg("migration failed")
	}
	logger.Info().Str("command", cmd).Msg("migration complete")
}

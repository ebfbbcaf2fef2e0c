// Command migrate manages the ledger schema.
//
//	migrate up | down | version
//	migrate steps N
//	migrate force VERSION
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/config"
	"github.com/cyberclick/backend/internal/repository"
)

func main() {
	logger := logrus.New()
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	m, err := repository.NewMigrator(cfg.DatabaseURL, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migrator")
	}
	defer m.Close()

	switch os.Args[1] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = withInt(func(n int) error { return m.Steps(n) })
	case "force":
		err = withInt(func(v int) error { return m.Force(v) })
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = m.Version()
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
		}
	default:
		usage()
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func withInt(fn func(int) error) error {
	if len(os.Args) < 3 {
		usage()
	}
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", os.Args[2], err)
	}
	return fn(n)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate up|down|version|steps N|force VERSION")
	os.Exit(2)
}

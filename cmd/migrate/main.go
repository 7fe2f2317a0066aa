package main

import (
	"flag"
	"os"

	"shopforge/internal/config"
	applog "shopforge/internal/log"
	"shopforge/internal/repos"
)

func main() {
	flag.Parse()
	args := flag.Args()
	log := applog.L()

	if len(args) < 1 {
		log.Error("usage: migrate <up|down|version>")
		os.Exit(1)
	}

	cfg := config.Load()
	db, err := repos.Connect(cfg.DBDriver, cfg.DBDSN, cfg.DBName)
	if err != nil {
		log.WithError(err).Error("db.connect.fail")
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := repos.Migrate(db, args[0]); err != nil {
		log.WithError(err).WithField("command", args[0]).Error("migrate.fail")
		_ = db.Close()
		os.Exit(1)
	}
}

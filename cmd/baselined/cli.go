package main

import "flag"

var (
	flagGops, flagMigrateDB, flagVersion, flagLogDateTime bool
	flagConfigFile, flagDBDriver, flagDBTarget, flagLogLevel string
)

func cliInit() {
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.BoolVar(&flagMigrateDB, "migrate-db", false, "Migrate the cache store to the supported schema version and exit")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Add date and time to log messages")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to `config.json`")
	flag.StringVar(&flagDBDriver, "db-driver", "sqlite3", "Driver for -migrate-db: sqlite3 or mysql")
	flag.StringVar(&flagDBTarget, "db-target", "./var/baseline.db", "DSN for -migrate-db")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Logging level: debug, info, warn, err, crit")
	flag.Parse()
}

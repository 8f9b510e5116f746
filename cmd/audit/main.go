// cmd/audit/main.go
//
// Batch consistency audit. Runs the same checks the admin endpoint exposes,
// but as a one-shot job suitable for cron.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/audit"
	"github.com/your-org/pos-backoffice/internal/infrastructure/database/postgres"
)

func main() {
	scope := flag.String("scope", audit.ScopeAll, "audit scope: 'all' or a sale ID")
	fix := flag.Bool("fix", false, "apply deterministic repairs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The env flag turns fix mode on for scheduled runs.
	if cfg.Audit.FixMode {
		*fix = true
	}

	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	auditor := audit.NewService(db.GetDB(), cfg, logger)

	report, err := auditor.Audit(*scope, *fix)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	// Non-zero exit when inconsistencies remain, so cron can alert.
	if !report.Clean() && !*fix {
		os.Exit(1)
	}
	if len(report.FixFailures) > 0 {
		os.Exit(1)
	}
}

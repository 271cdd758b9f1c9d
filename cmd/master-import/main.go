// master-import seeds the billing_master_entries table from a master
// workbook. Existing rows are upserted by invoice/item/case key, so the
// tool can be re-run against a newer export.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/master-import -file master.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"bitbucket.org/mmdatafocus/creditrecon_backend/models"
	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/workbook"
	"github.com/sirupsen/logrus"
)

func main() {
	filePath := flag.String("file", "", "Required: master workbook (.xlsx or .csv)")
	dryRun := flag.Bool("dry-run", false, "Parse and report, write nothing")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	logger := logrus.New()
	ctx := context.Background()

	rows, err := workbook.ReadSource(*filePath, recon.SourceMaster, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read master workbook: %v\n", err)
		os.Exit(1)
	}

	var skipped int
	entries := make([]recon.MasterEntry, 0, len(rows))
	for _, r := range rows {
		if r.Key.IsZero() {
			skipped++
			continue
		}
		e := recon.MasterEntry{
			Key:                r.Key,
			Qty:                r.Qty,
			UnitPrice:          r.UnitPrice,
			CorrectedUnitPrice: r.CorrectedUnitPrice,
			ExtendedPrice:      r.ExtendedPrice,
			ExtendedCorrect:    r.ExtendedCorrect,
			CreditTotal:        r.CreditTotal,
			MarginPct:          r.MarginPct,
			Category:           r.Category,
			Description:        r.Description,
			RtnCrNo:            r.RtnCrNo,
			CustomerNo:         r.CustomerNo,
			Version:            1,
			VersionTime:        time.Now(),
		}
		if r.SourceTimestamp != nil {
			e.VersionTime = *r.SourceTimestamp
		}
		entries = append(entries, e)
	}
	logger.Infof("parsed %d entries (%d rows without invoice/item key skipped)", len(entries), skipped)

	if *dryRun {
		logger.Info("dry run, nothing written")
		return
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	store := models.NewMasterStore(db)
	var failed int
	for _, e := range entries {
		if err := store.Put(ctx, e); err != nil {
			failed++
			logger.WithError(err).Errorf("upsert %s failed", e.Key)
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d entries failed\n", failed, len(entries))
		os.Exit(1)
	}
	logger.Infof("imported %d master entries", len(entries))
}

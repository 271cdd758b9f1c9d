// recon-run reconciles the three workbooks offline, without MySQL or
// Redis. The master workbook stands in for the billing-master table,
// so the tool is suitable for dry runs against files pulled from a
// shared drive.
//
// Usage:
//   go run ./cmd/recon-run -credit credit.xlsx -sop sop.xlsx -master master.xlsx -out report.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/workbook"
	"github.com/sirupsen/logrus"
)

func main() {
	creditPath := flag.String("credit", "", "Required: credit-request workbook (.xlsx or .csv)")
	sopPath := flag.String("sop", "", "Required: SOP workbook (.xlsx or .csv)")
	masterPath := flag.String("master", "", "Required: billing-master workbook (.xlsx or .csv)")
	outPath := flag.String("out", "recon_report.xlsx", "Run report workbook path")
	masterOut := flag.String("master-out", "", "Optional: write the updated master workbook here (implies -apply)")
	mergedCSV := flag.String("merged-csv", "", "Optional: write the merged table as CSV")
	scorerName := flag.String("scorer", "levenshtein", "Fuzzy scorer: levenshtein or jaro-winkler")
	threshold := flag.Float64("fuzzy-threshold", 0, "Override fuzzy accept threshold (0 keeps the default)")
	apply := flag.Bool("apply", false, "Apply the sync plan to the in-memory master")
	flag.Parse()

	for name, p := range map[string]*string{"credit": creditPath, "sop": sopPath, "master": masterPath} {
		if strings.TrimSpace(*p) == "" {
			fmt.Fprintf(os.Stderr, "--%s is required\n", name)
			os.Exit(1)
		}
	}
	if *masterOut != "" {
		*apply = true
	}

	logger := logrus.New()

	cfg := recon.DefaultConfig()
	if *threshold > 0 {
		if *threshold > 1 {
			fmt.Fprintln(os.Stderr, "--fuzzy-threshold must be in (0,1]")
			os.Exit(1)
		}
		cfg.FuzzyThreshold = *threshold
	}
	scorer, err := recon.ScorerByName(*scorerName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	credit := mustRead(*creditPath, recon.SourceCredit)
	sop := mustRead(*sopPath, recon.SourceSOP)
	master := mustRead(*masterPath, recon.SourceMaster)
	logger.Infof("loaded credit=%d sop=%d master=%d rows", len(credit), len(sop), len(master))

	store := recon.NewMemStore(entriesFromRows(master))

	result, err := recon.Reconcile(recon.Input{
		Credit:   credit,
		SOP:      sop,
		Master:   master,
		Snapshot: store.Snapshot(),
		Now:      time.Now(),
	}, cfg, scorer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(1)
	}

	summary := result.Summarize()
	logger.Infof("groups=%d clean=%d discrepant=%d fuzzy=%d ambiguous=%d duplicates=%d missing_key=%d",
		summary.Groups, summary.Clean, summary.Discrepant, summary.FuzzyMatched,
		summary.Ambiguous, summary.Duplicates, summary.MissingKey)
	logger.Infof("plan: proposed=%d unchanged=%d skipped=%d", summary.Proposed, summary.Unchanged, summary.Skipped)

	if *apply {
		applied := recon.Apply(context.Background(), store, result.Plan, 0)
		logger.Infof("apply: committed=%d unchanged=%d skipped=%d failed=%d",
			applied.Committed, applied.Unchanged, applied.Skipped, applied.Failed)
		if *masterOut != "" {
			if err := workbook.WriteMasterWorkbook(*masterOut, store.Entries()); err != nil {
				fmt.Fprintf(os.Stderr, "write master workbook: %v\n", err)
				os.Exit(1)
			}
			logger.Infof("updated master written to %s", *masterOut)
		}
	}

	if err := workbook.WriteRunWorkbook(*outPath, result); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("report written to %s", *outPath)

	if *mergedCSV != "" {
		if err := workbook.WriteMergedCSV(*mergedCSV, result.Merged); err != nil {
			fmt.Fprintf(os.Stderr, "write merged csv: %v\n", err)
			os.Exit(1)
		}
		logger.Infof("merged table written to %s", *mergedCSV)
	}
}

func mustRead(path string, src recon.Source) []*recon.Row {
	rows, err := workbook.ReadSource(path, src, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s workbook %s: %v\n", src, path, err)
		os.Exit(1)
	}
	return rows
}

// entriesFromRows seeds the in-memory master from the workbook, so the
// version-time used by the stale-source check is the row's own
// timestamp when the file carries one.
func entriesFromRows(rows []*recon.Row) []recon.MasterEntry {
	entries := make([]recon.MasterEntry, 0, len(rows))
	for _, r := range rows {
		if r.Key.IsZero() {
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
		}
		if r.SourceTimestamp != nil {
			e.VersionTime = *r.SourceTimestamp
		}
		entries = append(entries, e)
	}
	return entries
}

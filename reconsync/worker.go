package reconsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"bitbucket.org/mmdatafocus/creditrecon_backend/models"
	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/utils"
	"bitbucket.org/mmdatafocus/creditrecon_backend/workbook"
	"gorm.io/gorm"
)

const artifactContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func processReconRun(ctx context.Context, payload ReconPubSubPayload) error {
	if payload.RunId == 0 {
		return errors.New("invalid payload")
	}

	db := config.GetDB().WithContext(ctx)

	var run models.ReconRun
	if err := db.Where("id = ?", payload.RunId).Take(&run).Error; err != nil {
		return err
	}

	// Redelivered messages for finished runs are no-ops.
	if run.Status == models.ReconRunStatusSuccess || run.Status == models.ReconRunStatusFailed || run.Status == models.ReconRunStatusPartial {
		return nil
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.ReconRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	cfg := recon.DefaultConfig()
	if run.FuzzyThreshold != nil {
		cfg.FuzzyThreshold = *run.FuzzyThreshold
	}

	// A nil scorer disables the fuzzy fallback entirely; rows then only
	// align on exact keys.
	var scorer recon.Scorer
	if config.FuzzyMatchEnabledFor(string(recon.SourceCredit)) || config.FuzzyMatchEnabledFor(string(recon.SourceSOP)) {
		s, err := recon.ScorerByName(run.Scorer)
		if err != nil {
			return failRun(db, &run, *startedAt, err)
		}
		scorer = s
	}

	credit, err := loadSource(ctx, run.CreditFileRef, recon.SourceCredit)
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}
	sop, err := loadSource(ctx, run.SOPFileRef, recon.SourceSOP)
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}

	// The whole compare-and-commit pass holds the master scope so two
	// runs never interleave snapshot reads with entry writes.
	release, err := utils.MasterLock(ctx, "billing-master", "reconsync", "processReconRun")
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}
	defer release()

	snapshot, err := models.LoadMasterSnapshot(ctx)
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}

	// The master workbook is optional; when absent the committed DB
	// snapshot stands in as the third alignment source.
	var master []*recon.Row
	if run.MasterFileRef != "" {
		master, err = loadSource(ctx, run.MasterFileRef, recon.SourceMaster)
		if err != nil {
			return failRun(db, &run, *startedAt, err)
		}
	} else {
		master = masterRowsFromSnapshot(snapshot)
	}

	confirmed, err := loadConfirmedMatches(ctx, db)
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}

	result, err := recon.Reconcile(recon.Input{
		Credit:    credit,
		SOP:       sop,
		Master:    master,
		Snapshot:  snapshot,
		Confirmed: confirmed,
		Now:       now,
	}, cfg, scorer)
	if err != nil {
		return failRun(db, &run, *startedAt, err)
	}

	var apply recon.ApplyResult
	if config.AutoApplyEnabled() {
		apply = recon.Apply(ctx, models.NewMasterStore(config.GetDB()), result.Plan, run.ID)
	}

	if err := persistEntries(ctx, db, run.ID, result); err != nil {
		config.LogError(config.GetLogger(), "reconsync", "processReconRun", "persist entries", run.ID, err)
	}
	if err := persistIssues(ctx, db, run.ID, result.Issues); err != nil {
		config.LogError(config.GetLogger(), "reconsync", "processReconRun", "persist issues", run.ID, err)
	}
	if err := upsertPendingMatches(ctx, db, run.ID, result); err != nil {
		config.LogError(config.GetLogger(), "reconsync", "processReconRun", "upsert pending matches", run.ID, err)
	}

	artifactRef := ""
	if data, wbErr := workbook.RunWorkbookBytes(result); wbErr != nil {
		config.LogError(config.GetLogger(), "reconsync", "processReconRun", "render artifact", run.ID, wbErr)
	} else {
		objectKey := fmt.Sprintf("recon/runs/%d/report_%s.xlsx", run.ID, utils.GenerateUniqueFilename())
		if ref, upErr := utils.StoreArtifact(ctx, objectKey, data, artifactContentType); upErr != nil {
			config.LogError(config.GetLogger(), "reconsync", "processReconRun", "store artifact", run.ID, upErr)
		} else {
			artifactRef = ref
		}
	}

	summary := result.Summarize()
	statsJSON, _ := json.Marshal(summary)

	status := models.ReconRunStatusSuccess
	if apply.Failed > 0 {
		status = models.ReconRunStatusPartial
	}

	finishedAt := time.Now()
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":       status,
		"finished_at":  finishedAt,
		"duration_ms":  finishedAt.Sub(*startedAt).Milliseconds(),
		"committed":    apply.Committed,
		"unchanged":    result.Plan.Count(recon.EntryStateUnchanged),
		"skipped":      result.Plan.Count(recon.EntryStateSkipped),
		"issue_count":  len(result.Issues),
		"stats_json":   statsJSON,
		"artifact_ref": artifactRef,
	}).Error; err != nil {
		return err
	}

	_ = utils.RemoveRedisItem[models.ReconRun](int(run.ID))
	return nil
}

func failRun(db *gorm.DB, run *models.ReconRun, startedAt time.Time, cause error) error {
	finishedAt := time.Now()
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":      models.ReconRunStatusFailed,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(startedAt).Milliseconds(),
		"error":       cause.Error(),
	}).Error; err != nil {
		return err
	}
	_ = utils.RemoveRedisItem[models.ReconRun](int(run.ID))
	return cause
}

func loadSource(ctx context.Context, ref string, src recon.Source) ([]*recon.Row, error) {
	data, err := utils.FetchWorkbook(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch %s workbook: %w", src, err)
	}
	return workbook.ReadSourceBytes(data, ref, src, nil)
}

func masterRowsFromSnapshot(snapshot *recon.Snapshot) []*recon.Row {
	entries := snapshot.Entries()
	rows := make([]*recon.Row, 0, len(entries))
	for _, e := range entries {
		row := &recon.Row{
			Source:             recon.SourceMaster,
			Key:                e.Key,
			Qty:                e.Qty,
			UnitPrice:          e.UnitPrice,
			CorrectedUnitPrice: e.CorrectedUnitPrice,
			ExtendedPrice:      e.ExtendedPrice,
			ExtendedCorrect:    e.ExtendedCorrect,
			CreditTotal:        e.CreditTotal,
			MarginPct:          e.MarginPct,
			Category:           e.Category,
			Description:        e.Description,
			RtnCrNo:            e.RtnCrNo,
			CustomerNo:         e.CustomerNo,
		}
		if !e.VersionTime.IsZero() {
			t := e.VersionTime
			row.SourceTimestamp = &t
		}
		rows = append(rows, row)
	}
	return rows
}

func loadConfirmedMatches(ctx context.Context, db *gorm.DB) (map[recon.Key]bool, error) {
	var matches []models.PendingMatch
	if err := db.WithContext(ctx).
		Where("status = ?", models.PendingMatchStatusConfirmed).
		Find(&matches).Error; err != nil {
		return nil, err
	}
	confirmed := make(map[recon.Key]bool, len(matches))
	for _, m := range matches {
		confirmed[recon.Key{Invoice: m.InvoiceNo, Item: m.ItemNo}] = true
	}
	return confirmed, nil
}

func persistEntries(ctx context.Context, db *gorm.DB, runID uint, result *recon.Result) error {
	for _, e := range result.Plan.Entries {
		rec := models.ReconRunEntry{
			ReconRunId: runID,
			InvoiceNo:  e.Key.Invoice,
			ItemNo:     e.Key.Item,
			State:      string(e.State),
			IsNew:      e.New,
			SkipReason: string(e.SkipReason),
			Confidence: e.Confidence,
			Fuzzy:      e.Fuzzy,
		}
		if e.Before != nil {
			if s, err := utils.MarshalToJSON(e.Before); err == nil {
				rec.BeforeJSON = []byte(s)
			}
		}
		if e.After != nil {
			if s, err := utils.MarshalToJSON(e.After); err == nil {
				rec.AfterJSON = []byte(s)
			}
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

func persistIssues(ctx context.Context, db *gorm.DB, runID uint, issues []recon.Issue) error {
	for _, issue := range issues {
		rec := models.ReconIssue{
			ReconRunId: runID,
			Source:     string(issue.Source),
			InvoiceNo:  issue.Key.Invoice,
			ItemNo:     issue.Key.Item,
			Line:       issue.Line,
			Code:       string(issue.Code),
			Severity:   string(issue.Severity),
			Message:    issue.Message,
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// upsertPendingMatches records fuzzy matches awaiting operator decision.
// A key already decided keeps its decision; only undecided matches are
// refreshed with the latest candidate and score.
func upsertPendingMatches(ctx context.Context, db *gorm.DB, runID uint, result *recon.Result) error {
	for _, m := range result.Merged {
		if !m.Fuzzy {
			continue
		}

		var existing models.PendingMatch
		err := db.WithContext(ctx).
			Where("invoice_no = ? AND item_no = ?", m.Key.Invoice, m.Key.Item).
			Take(&existing).Error
		if err == nil {
			if existing.Status != models.PendingMatchStatusPending {
				continue
			}
			if err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"recon_run_id":      runID,
				"master_invoice_no": m.MasterKey.Invoice,
				"master_item_no":    m.MasterKey.Item,
				"score":             m.FuzzyScore,
				"description":       m.Values.Description,
			}).Error; err != nil {
				return err
			}
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		rec := models.PendingMatch{
			ReconRunId:      runID,
			InvoiceNo:       m.Key.Invoice,
			ItemNo:          m.Key.Item,
			MasterInvoiceNo: m.MasterKey.Invoice,
			MasterItemNo:    m.MasterKey.Item,
			Score:           m.FuzzyScore,
			Description:     m.Values.Description,
			Status:          models.PendingMatchStatusPending,
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

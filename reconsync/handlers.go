package reconsync

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"bitbucket.org/mmdatafocus/creditrecon_backend/models"
	"bitbucket.org/mmdatafocus/creditrecon_backend/recon"
	"bitbucket.org/mmdatafocus/creditrecon_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// UploadURLHandler issues a signed PUT URL so clients push source
// workbooks straight to the bucket; the returned object key is what
// they pass as a file ref when triggering a run.
func UploadURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UploadURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var verr validator.ValidationErrors
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(verr)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusBadRequest, gin.H{"error": "signed uploads require the gcs storage provider"})
			return
		}

		contentType := strings.TrimSpace(req.ContentType)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		objectKey := fmt.Sprintf("recon/uploads/%s_%s", utils.GenerateUniqueFilename(), filepath.Base(req.FileName))

		signed, err := utils.SignUpload(c.Request.Context(), objectKey, contentType, 15*time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, signed)
	}
}

func TriggerRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var verr validator.ValidationErrors
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(verr)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		scorer := strings.TrimSpace(req.Scorer)
		if scorer == "" {
			scorer = "levenshtein"
		}
		if _, err := recon.ScorerByName(scorer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run := models.ReconRun{
			Status:         models.ReconRunStatusQueued,
			TriggeredBy:    models.ReconTriggeredManual,
			CreditFileRef:  strings.TrimSpace(req.CreditFileRef),
			SOPFileRef:     strings.TrimSpace(req.SOPFileRef),
			MasterFileRef:  strings.TrimSpace(req.MasterFileRef),
			Scorer:         scorer,
			FuzzyThreshold: req.FuzzyThreshold,
		}
		if err := db.Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishReconRun(c.Request.Context(), run.ID)

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func RunHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var runs []models.ReconRun
		if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]RunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, RunHistoryResponse{Items: items})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run, err := getRun(db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var entries []models.ReconRunEntry
		if err := db.Where("recon_run_id = ?", run.ID).Order("id").Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var issues []models.ReconIssue
		if err := db.Where("recon_run_id = ?", run.ID).Order("id").Find(&issues).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := RunDetailResponse{
			RunResponse: mapRunToResponse(*run),
			Stats:       run.StatsJSON,
			Entries:     mapEntries(entries),
			Issues:      mapIssues(issues),
		}
		c.JSON(http.StatusOK, resp)
	}
}

func RetryRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run, err := getRun(db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		newRun := models.ReconRun{
			Status:         models.ReconRunStatusQueued,
			TriggeredBy:    models.ReconTriggeredRetry,
			CreditFileRef:  run.CreditFileRef,
			SOPFileRef:     run.SOPFileRef,
			MasterFileRef:  run.MasterFileRef,
			Scorer:         run.Scorer,
			FuzzyThreshold: run.FuzzyThreshold,
			ParentRunId:    &run.ID,
		}
		if err := db.Create(&newRun).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = PublishReconRun(c.Request.Context(), newRun.ID)

		c.JSON(http.StatusOK, gin.H{"id": newRun.ID})
	}
}

func RunArtifactHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		run, err := getRun(db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if run.ArtifactRef == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "run has no artifact"})
			return
		}

		if utils.GetStorageProvider() != utils.StorageProviderGCS {
			c.JSON(http.StatusOK, ArtifactResponse{
				RunId:       run.ID,
				DownloadURL: utils.BuildObjectAccessURL(run.ArtifactRef),
				ObjectKey:   run.ArtifactRef,
			})
			return
		}

		exists, err := utils.ObjectExistsInGCS(c.Request.Context(), run.ArtifactRef)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "artifact no longer in storage"})
			return
		}

		signed, err := utils.SignDownload(c.Request.Context(), run.ArtifactRef, 15*time.Minute)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ArtifactResponse{
			RunId:       run.ID,
			DownloadURL: signed.DownloadURL,
			ObjectKey:   signed.ObjectKey,
			ExpiresAt:   signed.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
}

func PendingMatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := strings.TrimSpace(c.Query("status"))
		if status == "" {
			status = models.PendingMatchStatusPending
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var matches []models.PendingMatch
		if err := db.Where("status = ?", status).Order("id desc").Find(&matches).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]PendingMatchResponse, 0, len(matches))
		for _, m := range matches {
			items = append(items, PendingMatchResponse{
				ID:              m.ID,
				ReconRunId:      m.ReconRunId,
				InvoiceNo:       m.InvoiceNo,
				ItemNo:          m.ItemNo,
				MasterInvoiceNo: m.MasterInvoiceNo,
				MasterItemNo:    m.MasterItemNo,
				Score:           m.Score,
				Description:     m.Description,
				Status:          m.Status,
			})
		}
		c.JSON(http.StatusOK, PendingMatchListResponse{Items: items})
	}
}

func ConfirmMatchHandler() gin.HandlerFunc {
	return decideMatchHandler(models.PendingMatchStatusConfirmed)
}

func RejectMatchHandler() gin.HandlerFunc {
	return decideMatchHandler(models.PendingMatchStatusRejected)
}

func decideMatchHandler(decision string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
			return
		}

		var req DecideMatchRequest
		_ = c.ShouldBindJSON(&req)
		decidedBy := strings.TrimSpace(req.DecidedBy)
		if decidedBy == "" {
			if v, ok := utils.GetRequestedByFromContext(c.Request.Context()); ok {
				decidedBy = v
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var match models.PendingMatch
		if err := db.Where("id = ?", id).Take(&match).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if match.Status != models.PendingMatchStatusPending {
			c.JSON(http.StatusConflict, gin.H{"error": "match already decided"})
			return
		}

		now := time.Now()
		if err := db.Model(&match).Updates(map[string]interface{}{
			"status":     decision,
			"decided_by": decidedBy,
			"decided_at": now,
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// getRun reads through the per-id cache; terminal runs are immutable so
// they cache indefinitely within the lifespan.
func getRun(db *gorm.DB, id int) (*models.ReconRun, error) {
	if cached, err := utils.RetrieveRedis[models.ReconRun](id); err == nil && cached != nil {
		return cached, nil
	}

	var run models.ReconRun
	if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
		return nil, err
	}
	if run.Status == models.ReconRunStatusSuccess || run.Status == models.ReconRunStatusFailed || run.Status == models.ReconRunStatusPartial {
		_ = utils.StoreRedis[models.ReconRun](&run, id)
	}
	return &run, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.ReconRun) RunResponse {
	return RunResponse{
		ID:          run.ID,
		Status:      run.Status,
		TriggeredBy: run.TriggeredBy,
		StartedAt:   formatTime(run.StartedAt),
		FinishedAt:  formatTime(run.FinishedAt),
		DurationMs:  run.DurationMs,
		Committed:   run.Committed,
		Unchanged:   run.Unchanged,
		Skipped:     run.Skipped,
		IssueCount:  run.IssueCount,
		ArtifactRef: run.ArtifactRef,
		Error:       run.Error,
	}
}

func mapEntries(entries []models.ReconRunEntry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{
			ID:         e.ID,
			InvoiceNo:  e.InvoiceNo,
			ItemNo:     e.ItemNo,
			State:      e.State,
			IsNew:      e.IsNew,
			SkipReason: e.SkipReason,
			Confidence: e.Confidence,
			Fuzzy:      e.Fuzzy,
		})
	}
	return out
}

func mapIssues(issues []models.ReconIssue) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for _, issue := range issues {
		out = append(out, IssueResponse{
			ID:        issue.ID,
			Source:    issue.Source,
			InvoiceNo: issue.InvoiceNo,
			ItemNo:    issue.ItemNo,
			Line:      issue.Line,
			Code:      issue.Code,
			Severity:  issue.Severity,
			Message:   issue.Message,
		})
	}
	return out
}

package models

import "time"

const (
	ReconRunStatusQueued  = "queued"
	ReconRunStatusRunning = "running"
	ReconRunStatusSuccess = "success"
	ReconRunStatusFailed  = "failed"
	ReconRunStatusPartial = "partial"
)

const (
	ReconTriggeredManual = "manual"
	ReconTriggeredRetry  = "retry"
	ReconTriggeredSystem = "system"
)

const (
	PendingMatchStatusPending   = "pending"
	PendingMatchStatusConfirmed = "confirmed"
	PendingMatchStatusRejected  = "rejected"
)

// ReconRun is one execution of the reconciliation + billing master
// auto-update, from queued through its terminal status.
type ReconRun struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	Status      string `gorm:"size:20;not null;index" json:"status"`
	TriggeredBy string `gorm:"size:20" json:"triggered_by"`

	// Object keys of the three uploaded source files.
	CreditFileRef string `gorm:"size:255" json:"credit_file_ref"`
	SOPFileRef    string `gorm:"size:255" json:"sop_file_ref"`
	MasterFileRef string `gorm:"size:255" json:"master_file_ref"`

	// Scorer and threshold overrides for this run; blank means defaults.
	Scorer         string   `gorm:"size:30" json:"scorer"`
	FuzzyThreshold *float64 `json:"fuzzy_threshold"`

	StatsJSON []byte `gorm:"type:json" json:"stats"`

	Committed  int `json:"committed"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	IssueCount int `json:"issue_count"`

	// ArtifactRef is the object key of the generated run workbook.
	ArtifactRef string `gorm:"size:255" json:"artifact_ref"`

	ParentRunId *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	Error       string     `gorm:"type:text" json:"error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReconRunEntry is the per-entry audit record: before/after values,
// the resulting state, and the skip reason if any.
type ReconRunEntry struct {
	ID         uint   `gorm:"primary_key" json:"id"`
	ReconRunId uint   `gorm:"index;not null" json:"recon_run_id"`
	InvoiceNo  string `gorm:"size:64;not null" json:"invoice_no"`
	ItemNo     string `gorm:"size:64;not null" json:"item_no"`

	State      string  `gorm:"size:20;not null" json:"state"`
	IsNew      bool    `gorm:"default:false" json:"is_new"`
	SkipReason string  `gorm:"size:64" json:"skip_reason"`
	Confidence float64 `json:"confidence"`
	Fuzzy      bool    `gorm:"default:false" json:"fuzzy"`

	BeforeJSON []byte `gorm:"type:json" json:"before"`
	AfterJSON  []byte `gorm:"type:json" json:"after"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ReconIssue is one row-level diagnostic collected during a run.
type ReconIssue struct {
	ID         uint   `gorm:"primary_key" json:"id"`
	ReconRunId uint   `gorm:"index;not null" json:"recon_run_id"`
	Source     string `gorm:"size:20" json:"source"`
	InvoiceNo  string `gorm:"size:64" json:"invoice_no"`
	ItemNo     string `gorm:"size:64" json:"item_no"`
	Line       int    `json:"line"`
	Code       string `gorm:"size:40;not null" json:"code"`
	Severity   string `gorm:"size:20" json:"severity"`
	Message    string `gorm:"type:text" json:"message"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// PendingMatch is a low-confidence fuzzy match waiting for an operator
// decision. Confirmed matches become committable on the next run.
type PendingMatch struct {
	ID         uint   `gorm:"primary_key" json:"id"`
	ReconRunId uint   `gorm:"index;not null" json:"recon_run_id"`
	InvoiceNo  string `gorm:"uniqueIndex:idx_pending_match_key,priority:1;size:64;not null" json:"invoice_no"`
	ItemNo     string `gorm:"uniqueIndex:idx_pending_match_key,priority:2;size:64;not null" json:"item_no"`

	// The billing-master row the fuzzy match points at.
	MasterInvoiceNo string  `gorm:"size:64" json:"master_invoice_no"`
	MasterItemNo    string  `gorm:"size:64" json:"master_item_no"`
	Score           float64 `json:"score"`
	Description     string  `gorm:"size:255" json:"description"`

	Status    string     `gorm:"size:20;not null;index" json:"status"`
	DecidedBy string     `gorm:"size:100" json:"decided_by"`
	DecidedAt *time.Time `json:"decided_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

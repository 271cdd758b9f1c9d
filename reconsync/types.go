package reconsync

import "encoding/json"

type TriggerRunRequest struct {
	CreditFileRef string `json:"creditFileRef" binding:"required"`
	SOPFileRef    string `json:"sopFileRef" binding:"required"`
	MasterFileRef string `json:"masterFileRef"`

	Scorer         string   `json:"scorer"`
	FuzzyThreshold *float64 `json:"fuzzyThreshold" binding:"omitempty,gt=0,lte=1"`
}

type UploadURLRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType"`
}

type RunResponse struct {
	ID          uint    `json:"id"`
	Status      string  `json:"status"`
	TriggeredBy string  `json:"triggeredBy"`
	StartedAt   *string `json:"startedAt"`
	FinishedAt  *string `json:"finishedAt"`
	DurationMs  int64   `json:"durationMs"`
	Committed   int     `json:"committed"`
	Unchanged   int     `json:"unchanged"`
	Skipped     int     `json:"skipped"`
	IssueCount  int     `json:"issueCount"`
	ArtifactRef string  `json:"artifactRef"`
	Error       string  `json:"error,omitempty"`
}

type RunHistoryResponse struct {
	Items []RunResponse `json:"items"`
}

type RunDetailResponse struct {
	RunResponse
	Stats   json.RawMessage `json:"stats,omitempty"`
	Entries []EntryResponse `json:"entries"`
	Issues  []IssueResponse `json:"issues"`
}

type EntryResponse struct {
	ID         uint    `json:"id"`
	InvoiceNo  string  `json:"invoiceNo"`
	ItemNo     string  `json:"itemNo"`
	State      string  `json:"state"`
	IsNew      bool    `json:"isNew"`
	SkipReason string  `json:"skipReason,omitempty"`
	Confidence float64 `json:"confidence"`
	Fuzzy      bool    `json:"fuzzy"`
}

type IssueResponse struct {
	ID        uint   `json:"id"`
	Source    string `json:"source"`
	InvoiceNo string `json:"invoiceNo"`
	ItemNo    string `json:"itemNo"`
	Line      int    `json:"line"`
	Code      string `json:"code"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

type PendingMatchResponse struct {
	ID              uint    `json:"id"`
	ReconRunId      uint    `json:"reconRunId"`
	InvoiceNo       string  `json:"invoiceNo"`
	ItemNo          string  `json:"itemNo"`
	MasterInvoiceNo string  `json:"masterInvoiceNo"`
	MasterItemNo    string  `json:"masterItemNo"`
	Score           float64 `json:"score"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
}

type PendingMatchListResponse struct {
	Items []PendingMatchResponse `json:"items"`
}

type DecideMatchRequest struct {
	DecidedBy string `json:"decidedBy"`
}

type ArtifactResponse struct {
	RunId       uint   `json:"runId"`
	DownloadURL string `json:"downloadUrl"`
	ObjectKey   string `json:"objectKey"`
	ExpiresAt   string `json:"expiresAt"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ReconPubSubPayload struct {
	RunId uint `json:"run_id"`
}

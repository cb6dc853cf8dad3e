package ipc

import "redact/internal/api"

// TalkCreateRequest registers a new talk.
type TalkCreateRequest struct {
	Title    string `json:"title"`
	Speaker  string `json:"speaker"`
	Language string `json:"language"`
}

// TalkCreateResponse returns the created talk.
type TalkCreateResponse struct {
	Talk api.Talk `json:"talk"`
}

// TalkListRequest fetches all talks.
type TalkListRequest struct{}

// TalkListResponse contains talks with their review progress.
type TalkListResponse struct {
	Talks    []api.Talk           `json:"talks"`
	Progress []api.ReviewProgress `json:"progress"`
}

// TalkShowRequest fetches one talk by id or slug.
type TalkShowRequest struct {
	Ref string `json:"ref"`
}

// TalkShowResponse contains one talk with its documents.
type TalkShowResponse struct {
	Talk      api.Talk           `json:"talk"`
	Documents []api.Document     `json:"documents"`
	Progress  api.ReviewProgress `json:"progress"`
}

// TalkResumeRequest reactivates a halted talk.
type TalkResumeRequest struct {
	Ref string `json:"ref"`
}

// TalkResumeResponse returns the reactivated talk.
type TalkResumeResponse struct {
	Talk api.Talk `json:"talk"`
}

// DocumentAddRequest uploads one transcript into a talk.
type DocumentAddRequest struct {
	TalkRef string `json:"talk_ref"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DocumentAddResponse returns the stored document.
type DocumentAddResponse struct {
	Document api.Document `json:"document"`
}

// ScanRequest triggers a synchronous scan pass over pending documents.
type ScanRequest struct{}

// ScanResponse reports how many documents were picked up.
type ScanResponse struct {
	Processed int `json:"processed"`
}

// RetryRequest returns failed documents to the scan queue. Empty IDs retries
// all failed documents.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse reports how many documents were requeued.
type RetryResponse struct {
	Requeued int64 `json:"requeued"`
}

// PendingFindingsRequest lists undecided entities for a talk.
type PendingFindingsRequest struct {
	TalkRef string `json:"talk_ref"`
}

// PendingFindingsResponse contains undecided entities in document order.
type PendingFindingsResponse struct {
	Findings []api.Finding `json:"findings"`
}

// DecideRequest records one review decision.
type DecideRequest struct {
	EntityID    string `json:"entity_id"`
	Status      string `json:"status"`
	Replacement string `json:"replacement"`
	Note        string `json:"note"`
}

// DecideResponse returns the recorded decision row.
type DecideResponse struct {
	Decision api.Decision `json:"decision"`
}

// DecisionHistoryRequest fetches the audit trail of one entity.
type DecisionHistoryRequest struct {
	EntityID string `json:"entity_id"`
}

// DecisionHistoryResponse contains decisions oldest first, superseded included.
type DecisionHistoryResponse struct {
	Decisions []api.Decision `json:"decisions"`
}

// SanitizeRequest rewrites every document of a talk.
type SanitizeRequest struct {
	TalkRef string `json:"talk_ref"`
}

// SanitizeResponse contains the sanitized documents and their output paths.
type SanitizeResponse struct {
	Result api.SanitizeResult `json:"result"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running      bool   `json:"running"`
	Talks        int    `json:"talks"`
	PendingDocs  int    `json:"pending_docs"`
	FailedDocs   int    `json:"failed_docs"`
	LastError    string `json:"last_error"`
	DatabasePath string `json:"database_path"`
	LockPath     string `json:"lock_path"`
	PID          int    `json:"pid"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

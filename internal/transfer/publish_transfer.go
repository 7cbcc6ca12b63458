package transfer

// PublishResult is what a platform adapter reports for a single account.
// Adapters never persist anything; the orchestrator turns results into
// published-post rows.
type PublishResult struct {
	PlatformPostID string `json:"platform_post_id"`
	HasMedia       bool   `json:"has_media"`
	MediaCount     int    `json:"media_count"`
	Method         string `json:"method"`
	Fallback       bool   `json:"fallback,omitempty"`
	Simulated      bool   `json:"simulated,omitempty"`
}

// AccountError is one failed fan-out target, keyed by the account's display
// name.
type AccountError struct {
	AccountName string `json:"account_name"`
	Message     string `json:"message"`
}

// PublishSummary aggregates a full fan-out of one draft.
type PublishSummary struct {
	DraftID      int64          `json:"draft_id"`
	SuccessCount int            `json:"success_count"`
	TotalCount   int            `json:"total_count"`
	Errors       []AccountError `json:"errors,omitempty"`
}

package transfer

// DraftCreation carries the multipart form fields of a draft submission.
// Platforms, PlatformData and SocialAccountIDs arrive JSON-encoded.
type DraftCreation struct {
	MasterContent    string `json:"master_content" validate:"required"`
	Platforms        string `json:"platforms"`
	PlatformData     string `json:"platform_data"`
	ScheduledAt      string `json:"scheduled_at"`
	SocialAccountIDs string `json:"social_account_ids" validate:"required"`
}

const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// DraftDecision is an admin approve/reject action. A rejection must carry a
// reason of at least five characters.
type DraftDecision struct {
	Decision string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Reason   string `json:"reason" validate:"required_if=Decision REJECT,omitempty,min=5"`
}

// PublishRequest is the manual publish-now trigger.
type PublishRequest struct {
	SocialAccountIDs []int64 `json:"social_account_ids" validate:"required,min=1"`
}

package service

import (
	"context"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

// PlatformPublisher is the capability every platform adapter implements.
// Adapters perform the outbound calls and report a result; they never touch
// persistent storage.
type PlatformPublisher interface {
	Platform() string
	Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error)
}

// publishPolicy captures what differs between platforms so the orchestrator
// does not grow per-platform branches: text limit, media cap, whether media
// must live on a public host, and whether a failed attempt may be recorded as
// a simulated post.
type publishPolicy struct {
	TextLimit         int
	MaxMedia          int
	RequiresMedia     bool
	SimulateOnFailure bool
}

var publishPolicies = map[string]publishPolicy{
	models.PlatformTwitter:   {TextLimit: 280, MaxMedia: 4, SimulateOnFailure: true},
	models.PlatformFacebook:  {TextLimit: 5000, MaxMedia: 1},
	models.PlatformInstagram: {TextLimit: 2200, MaxMedia: 1, RequiresMedia: true},
	models.PlatformLinkedin:  {TextLimit: 3000, MaxMedia: 9},
}

func policyFor(platform string) publishPolicy {
	if p, ok := publishPolicies[platform]; ok {
		return p
	}
	return publishPolicy{TextLimit: 280}
}

func truncate(content string, limit int) string {
	if limit <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}

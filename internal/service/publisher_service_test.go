package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

func newTestDraft(dr *fakeDraftRepo, accountIDs ...int64) *models.Draft {
	draft := &models.Draft{
		UserID:        1,
		MasterContent: "hello world",
		Status:        models.DraftStatusApproved,
	}
	draft.SetTargetAccountIDs(accountIDs)
	return dr.add(draft)
}

func newTestAccount(ar *fakeAccountRepo, id int64, platform string, connected bool) *models.SocialAccount {
	sa := &models.SocialAccount{
		ID:          id,
		UserID:      1,
		Platform:    platform,
		AccountName: platform + "-acct",
		IsConnected: connected,
	}
	ar.accounts[id] = sa
	return sa
}

func TestPublishDraftPartialFailure(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	pr := newFakePostRepo()

	newTestAccount(ar, 1, models.PlatformLinkedin, true)
	newTestAccount(ar, 2, models.PlatformFacebook, true)
	draft := newTestDraft(dr, 1, 2)

	linkedin := &fakeAdapter{platform: models.PlatformLinkedin, err: errors.New("api down")}
	facebook := &fakeAdapter{platform: models.PlatformFacebook, result: &transfer.PublishResult{PlatformPostID: "fb_1", Method: "feed_text"}}

	s := NewPublisherService(dr, ar, pr, &fakeGuard{}, linkedin, facebook)

	summary, err := s.PublishDraft(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}

	if summary.SuccessCount != 1 || summary.TotalCount != 2 {
		t.Fatalf("got success=%d total=%d, want 1/2", summary.SuccessCount, summary.TotalCount)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].AccountName != "linkedin-acct" {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}
	if draft.Status != models.DraftStatusPublished {
		t.Errorf("draft status = %s, want PUBLISHED after one success", draft.Status)
	}
	if pp, _ := pr.GetByPair(context.Background(), draft.ID, 2); pp == nil || pp.PlatformPostID != "fb_1" {
		t.Errorf("published post for account 2 not recorded: %+v", pp)
	}
	if pp, _ := pr.GetByPair(context.Background(), draft.ID, 1); pp != nil {
		t.Errorf("failed account should not get a published row, got %+v", pp)
	}
}

func TestPublishDraftSkipsDisconnectedAccounts(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	pr := newFakePostRepo()

	newTestAccount(ar, 1, models.PlatformFacebook, true)
	newTestAccount(ar, 2, models.PlatformFacebook, false)
	draft := newTestDraft(dr, 1, 2)

	facebook := &fakeAdapter{platform: models.PlatformFacebook, result: &transfer.PublishResult{PlatformPostID: "fb_9"}}
	s := NewPublisherService(dr, ar, pr, &fakeGuard{}, facebook)

	summary, err := s.PublishDraft(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}

	if summary.TotalCount != 1 {
		t.Fatalf("total = %d, want disconnected account excluded", summary.TotalCount)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("disconnected account must fail silently, got %+v", summary.Errors)
	}
	if facebook.calls != 1 {
		t.Errorf("adapter called %d times, want 1", facebook.calls)
	}
}

func TestPublishDraftZeroSuccessLeavesStatus(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	pr := newFakePostRepo()

	newTestAccount(ar, 1, models.PlatformLinkedin, true)
	draft := newTestDraft(dr, 1)

	linkedin := &fakeAdapter{platform: models.PlatformLinkedin, err: errors.New("boom")}
	s := NewPublisherService(dr, ar, pr, &fakeGuard{}, linkedin)

	summary, err := s.PublishDraft(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}

	if summary.SuccessCount != 0 {
		t.Fatalf("success = %d, want 0", summary.SuccessCount)
	}
	if draft.Status != models.DraftStatusApproved {
		t.Errorf("draft status = %s, want unchanged APPROVED", draft.Status)
	}
	if len(dr.markPublished) != 0 {
		t.Errorf("MarkPublished must not run on a zero-success fan-out")
	}
}

func TestPublishDraftTwitterFailureIsSimulated(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	pr := newFakePostRepo()

	newTestAccount(ar, 1, models.PlatformTwitter, true)
	draft := newTestDraft(dr, 1)

	twitter := &fakeAdapter{platform: models.PlatformTwitter, err: errors.New("rate limited")}
	s := NewPublisherService(dr, ar, pr, &fakeGuard{}, twitter)

	summary, err := s.PublishDraft(context.Background(), draft, nil)
	if err != nil {
		t.Fatalf("PublishDraft: %v", err)
	}

	if summary.SuccessCount != 1 {
		t.Fatalf("simulated fallback should count as success, got %d", summary.SuccessCount)
	}
	pp, _ := pr.GetByPair(context.Background(), draft.ID, 1)
	if pp == nil {
		t.Fatal("no published row recorded")
	}
	if !pp.Simulated() {
		t.Errorf("published row not tagged simulated: %+v", pp.Metadata)
	}
	if !strings.HasPrefix(pp.PlatformPostID, "sim_tw_") {
		t.Errorf("platform post id = %q, want sim_tw_ prefix", pp.PlatformPostID)
	}
}

func TestPublishDraftIdempotentPerAccount(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	pr := newFakePostRepo()

	newTestAccount(ar, 1, models.PlatformFacebook, true)
	draft := newTestDraft(dr, 1)

	facebook := &fakeAdapter{platform: models.PlatformFacebook, result: &transfer.PublishResult{PlatformPostID: "fb_1"}}
	s := NewPublisherService(dr, ar, pr, &fakeGuard{}, facebook)

	for i := 0; i < 2; i++ {
		if _, err := s.PublishDraft(context.Background(), draft, nil); err != nil {
			t.Fatalf("PublishDraft run %d: %v", i+1, err)
		}
	}

	posts, _ := pr.ListByDraftID(context.Background(), draft.ID)
	if len(posts) != 1 {
		t.Fatalf("got %d published rows for one (draft, account) pair, want 1", len(posts))
	}
}

func TestTruncateIsRuneSafe(t *testing.T) {
	content := strings.Repeat("é", 300)
	got := truncate(content, 280)
	if len([]rune(got)) != 280 {
		t.Errorf("truncated to %d runes, want 280", len([]rune(got)))
	}
	if strings.ContainsRune(got, '�') {
		t.Error("truncation split a multi-byte rune")
	}
	if truncate("short", 280) != "short" {
		t.Error("content under the limit must be untouched")
	}
}

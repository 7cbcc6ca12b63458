package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

func newDecisionService(dr *fakeDraftRepo, enq *fakeEnqueuer) DraftService {
	return NewDraftService(nil, dr, newFakeAccountRepo(), newFakePostRepo(), &fakeMedia{}, nil, enq)
}

func pendingDraft(dr *fakeDraftRepo, scheduledAt time.Time) *models.Draft {
	draft := &models.Draft{
		UserID:        1,
		MasterContent: "pending post",
		Status:        models.DraftStatusPending,
	}
	if !scheduledAt.IsZero() {
		draft.ScheduledAt = sql.NullTime{Time: scheduledAt, Valid: true}
	}
	draft.SetTargetAccountIDs([]int64{1})
	return dr.add(draft)
}

func TestDecideRejectRequiresReason(t *testing.T) {
	dr := newFakeDraftRepo()
	s := newDecisionService(dr, &fakeEnqueuer{})
	draft := pendingDraft(dr, time.Time{})

	tests := []struct {
		name   string
		reason string
		wantOK bool
	}{
		{"missing reason", "", false},
		{"too short", "bad", false},
		{"valid reason", "off-brand messaging", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft.Status = models.DraftStatusPending
			_, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{
				Decision: transfer.DecisionReject,
				Reason:   tt.reason,
			})
			if tt.wantOK && err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}

	if dr.decisionStatus != models.DraftStatusRejected {
		t.Errorf("decision status = %s, want REJECTED", dr.decisionStatus)
	}
	if dr.decisionReason != "off-brand messaging" {
		t.Errorf("rejection reason = %q not persisted", dr.decisionReason)
	}
}

func TestDecideApproveRoutesBySchedule(t *testing.T) {
	t.Run("future schedule parks the draft", func(t *testing.T) {
		dr := newFakeDraftRepo()
		enq := &fakeEnqueuer{}
		s := newDecisionService(dr, enq)
		draft := pendingDraft(dr, time.Now().Add(2*time.Hour))

		updated, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{Decision: transfer.DecisionApprove})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if updated.Status != models.DraftStatusScheduled {
			t.Errorf("status = %s, want SCHEDULED", updated.Status)
		}
		if len(enq.drafts) != 0 {
			t.Errorf("scheduled draft must not be enqueued immediately")
		}
	})

	t.Run("no schedule publishes immediately", func(t *testing.T) {
		dr := newFakeDraftRepo()
		enq := &fakeEnqueuer{}
		s := newDecisionService(dr, enq)
		draft := pendingDraft(dr, time.Time{})

		updated, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{Decision: transfer.DecisionApprove})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if updated.Status != models.DraftStatusApproved {
			t.Errorf("status = %s, want APPROVED", updated.Status)
		}
		if len(enq.drafts) != 1 || enq.drafts[0] != draft.ID {
			t.Errorf("approved draft not enqueued: %v", enq.drafts)
		}
	})

	t.Run("past schedule publishes immediately", func(t *testing.T) {
		dr := newFakeDraftRepo()
		enq := &fakeEnqueuer{}
		s := newDecisionService(dr, enq)
		draft := pendingDraft(dr, time.Now().Add(-time.Hour))

		updated, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{Decision: transfer.DecisionApprove})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if updated.Status != models.DraftStatusApproved {
			t.Errorf("status = %s, want APPROVED", updated.Status)
		}
		if len(enq.drafts) != 1 {
			t.Errorf("overdue draft not enqueued")
		}
	})
}

func TestDecideRejectAllowedUntilPublished(t *testing.T) {
	for _, status := range []string{models.DraftStatusPending, models.DraftStatusScheduled, models.DraftStatusApproved} {
		t.Run(status, func(t *testing.T) {
			dr := newFakeDraftRepo()
			s := newDecisionService(dr, &fakeEnqueuer{})
			draft := pendingDraft(dr, time.Now().Add(time.Hour))
			draft.Status = status

			updated, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{
				Decision: transfer.DecisionReject,
				Reason:   "campaign pulled",
			})
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if updated.Status != models.DraftStatusRejected {
				t.Errorf("status = %s, want REJECTED", updated.Status)
			}
			if updated.RejectionReason != "campaign pulled" {
				t.Errorf("reason = %q not persisted", updated.RejectionReason)
			}
		})
	}
}

func TestDecideOnPublishedDraftIsNoOp(t *testing.T) {
	dr := newFakeDraftRepo()
	enq := &fakeEnqueuer{}
	s := newDecisionService(dr, enq)
	draft := pendingDraft(dr, time.Time{})
	draft.Status = models.DraftStatusPublished

	for _, decision := range []*transfer.DraftDecision{
		{Decision: transfer.DecisionApprove},
		{Decision: transfer.DecisionReject, Reason: "decided too late"},
	} {
		got, err := s.Decide(context.Background(), draft.ID, decision)
		if err != nil {
			t.Fatalf("Decide(%s): %v", decision.Decision, err)
		}
		if got.Status != models.DraftStatusPublished {
			t.Errorf("Decide(%s) moved a published draft to %s", decision.Decision, got.Status)
		}
	}
	if len(enq.drafts) != 0 {
		t.Error("published draft must not be re-enqueued")
	}
	if dr.decisionStatus != "" {
		t.Error("published draft must not be rewritten")
	}
}

func TestDecideApproveRequiresPendingDraft(t *testing.T) {
	dr := newFakeDraftRepo()
	s := newDecisionService(dr, &fakeEnqueuer{})
	draft := pendingDraft(dr, time.Time{})
	draft.Status = models.DraftStatusScheduled

	_, err := s.Decide(context.Background(), draft.ID, &transfer.DraftDecision{Decision: transfer.DecisionApprove})
	if err != ErrDraftNotPending {
		t.Errorf("got %v, want ErrDraftNotPending", err)
	}

	_, err = s.Decide(context.Background(), 999, &transfer.DraftDecision{Decision: transfer.DecisionApprove})
	if err != ErrDraftNotFound {
		t.Errorf("got %v, want ErrDraftNotFound", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	newTestAccount(ar, 1, models.PlatformTwitter, true)
	s := NewDraftService(nil, dr, ar, newFakePostRepo(), &fakeMedia{}, nil, &fakeEnqueuer{})

	tests := []struct {
		name     string
		creation transfer.DraftCreation
	}{
		{"missing content", transfer.DraftCreation{SocialAccountIDs: "[1]"}},
		{"missing accounts", transfer.DraftCreation{MasterContent: "hi"}},
		{"malformed account ids", transfer.DraftCreation{MasterContent: "hi", SocialAccountIDs: "nope"}},
		{"empty account list", transfer.DraftCreation{MasterContent: "hi", SocialAccountIDs: "[]"}},
		{"foreign account", transfer.DraftCreation{MasterContent: "hi", SocialAccountIDs: "[42]"}},
		{"unknown platform", transfer.DraftCreation{MasterContent: "hi", SocialAccountIDs: "[1]", Platforms: `["myspace"]`}},
		{"bad schedule format", transfer.DraftCreation{MasterContent: "hi", SocialAccountIDs: "[1]", ScheduledAt: "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Submit(context.Background(), 1, &tt.creation, nil); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestPublishNowRequiresApprovedDraft(t *testing.T) {
	dr := newFakeDraftRepo()
	ar := newFakeAccountRepo()
	newTestAccount(ar, 1, models.PlatformFacebook, true)

	publisher := NewPublisherService(dr, ar, newFakePostRepo(), &fakeGuard{},
		&fakeAdapter{platform: models.PlatformFacebook, result: &transfer.PublishResult{PlatformPostID: "fb_1"}})
	s := NewDraftService(nil, dr, ar, newFakePostRepo(), &fakeMedia{}, publisher, &fakeEnqueuer{})

	draft := pendingDraft(dr, time.Time{})
	req := &transfer.PublishRequest{SocialAccountIDs: []int64{1}}

	if _, err := s.PublishNow(context.Background(), 1, draft.ID, req); err != ErrDraftNotPublishable {
		t.Fatalf("got %v, want ErrDraftNotPublishable for a PENDING draft", err)
	}

	draft.Status = models.DraftStatusApproved
	summary, err := s.PublishNow(context.Background(), 1, draft.ID, req)
	if err != nil {
		t.Fatalf("PublishNow: %v", err)
	}
	if summary.SuccessCount != 1 {
		t.Errorf("success = %d, want 1", summary.SuccessCount)
	}

	if draft.Status != models.DraftStatusPublished {
		t.Fatalf("status = %s after a successful publish, want PUBLISHED", draft.Status)
	}
	if _, err := s.PublishNow(context.Background(), 1, draft.ID, req); err != ErrDraftNotPublishable {
		t.Errorf("got %v, want ErrDraftNotPublishable for a PUBLISHED draft", err)
	}
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

type fakeDraftRepo struct {
	drafts         map[int64]*models.Draft
	nextID         int64
	attempts       map[int64]int
	markPublished  []int64
	statusUpdates  []string
	decisionStatus string
	decisionReason string
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{drafts: map[int64]*models.Draft{}, attempts: map[int64]int{}, nextID: 1}
}

func (f *fakeDraftRepo) add(d *models.Draft) *models.Draft {
	if d.ID == 0 {
		d.ID = f.nextID
		f.nextID++
	}
	f.drafts[d.ID] = d
	return d
}

func (f *fakeDraftRepo) Create(ctx context.Context, tx *sql.Tx, draft *models.Draft) (int64, error) {
	f.add(draft)
	return draft.ID, nil
}

func (f *fakeDraftRepo) GetByID(ctx context.Context, id int64) (*models.Draft, error) {
	return f.drafts[id], nil
}

func (f *fakeDraftRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Draft, error) {
	var out []*models.Draft
	for _, d := range f.drafts {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Draft, error) {
	var out []*models.Draft
	for _, d := range f.drafts {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	drafts, _ := f.ListByStatus(ctx, status, 0, 0)
	return len(drafts), nil
}

func (f *fakeDraftRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Draft, error) {
	var out []*models.Draft
	for _, d := range f.drafts {
		if d.Status == models.DraftStatusScheduled && d.ScheduledAt.Valid && !d.ScheduledAt.Time.After(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) ListScheduledBetween(ctx context.Context, userID int64, from, to time.Time) ([]*models.Draft, error) {
	var out []*models.Draft
	for _, d := range f.drafts {
		if d.UserID == userID && d.ScheduledAt.Valid &&
			!d.ScheduledAt.Time.Before(from) && !d.ScheduledAt.Time.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) UpdateStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	d, ok := f.drafts[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	f.statusUpdates = append(f.statusUpdates, fmt.Sprintf("%d:%s->%s", id, from, to))
	return true, nil
}

func (f *fakeDraftRepo) UpdateDecision(ctx context.Context, id int64, status, reason string) error {
	d, ok := f.drafts[id]
	if !ok || d.Status == models.DraftStatusPublished {
		return nil
	}
	d.Status = status
	d.RejectionReason = reason
	f.decisionStatus = status
	f.decisionReason = reason
	return nil
}

func (f *fakeDraftRepo) MarkPublished(ctx context.Context, id int64, publishedID string) (bool, error) {
	d, ok := f.drafts[id]
	if !ok || d.Status == models.DraftStatusPublished {
		return false, nil
	}
	d.Status = models.DraftStatusPublished
	d.PublishedID = publishedID
	f.markPublished = append(f.markPublished, id)
	return true, nil
}

func (f *fakeDraftRepo) IncrementPublishAttempts(ctx context.Context, id int64) (int, error) {
	f.attempts[id]++
	if d, ok := f.drafts[id]; ok {
		d.PublishAttempts = f.attempts[id]
	}
	return f.attempts[id], nil
}

func (f *fakeDraftRepo) CheckByUserID(ctx context.Context, draftID, userID int64) (bool, error) {
	d, ok := f.drafts[draftID]
	return ok && d.UserID == userID, nil
}

func (f *fakeDraftRepo) Remove(ctx context.Context, id int64) error {
	delete(f.drafts, id)
	return nil
}

type fakeAccountRepo struct {
	accounts     map[int64]*models.SocialAccount
	disconnected []int64
	tokenWrites  []int64
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[int64]*models.SocialAccount{}}
}

func (f *fakeAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	if sa.ID == 0 {
		sa.ID = int64(len(f.accounts) + 1)
	}
	sa.IsConnected = true
	f.accounts[sa.ID] = sa
	return sa.ID, nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return f.accounts[id], nil
}

func (f *fakeAccountRepo) ListConnectedByIDs(ctx context.Context, ids []int64) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, id := range ids {
		if sa, ok := f.accounts[id]; ok && sa.IsConnected {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, sa := range f.accounts {
		if sa.UserID == userID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	sa, ok := f.accounts[accountID]
	return ok && sa.UserID == userID, nil
}

func (f *fakeAccountRepo) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	sa, ok := f.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	if accessToken != "" {
		sa.AccessToken = accessToken
	}
	if refreshToken != "" {
		sa.RefreshToken = refreshToken
	}
	sa.TokenExpiresAt = expiresAt
	f.tokenWrites = append(f.tokenWrites, id)
	return nil
}

func (f *fakeAccountRepo) SetConnected(ctx context.Context, id int64, connected bool) error {
	if sa, ok := f.accounts[id]; ok {
		sa.IsConnected = connected
	}
	if !connected {
		f.disconnected = append(f.disconnected, id)
	}
	return nil
}

type fakePostRepo struct {
	posts map[string]*models.PublishedPost
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[string]*models.PublishedPost{}}
}

func pairKey(draftID, accountID int64) string {
	return fmt.Sprintf("%d:%d", draftID, accountID)
}

func (f *fakePostRepo) Upsert(ctx context.Context, pp *models.PublishedPost) (int64, error) {
	key := pairKey(pp.DraftID, pp.SocialAccountID)
	if existing, ok := f.posts[key]; ok {
		pp.ID = existing.ID
	} else {
		pp.ID = int64(len(f.posts) + 1)
	}
	f.posts[key] = pp
	return pp.ID, nil
}

func (f *fakePostRepo) GetByPair(ctx context.Context, draftID, socialAccountID int64) (*models.PublishedPost, error) {
	return f.posts[pairKey(draftID, socialAccountID)], nil
}

func (f *fakePostRepo) ListByDraftID(ctx context.Context, draftID int64) ([]*models.PublishedPost, error) {
	var out []*models.PublishedPost
	for _, pp := range f.posts {
		if pp.DraftID == draftID {
			out = append(out, pp)
		}
	}
	return out, nil
}

func (f *fakePostRepo) RemoveByDraftID(ctx context.Context, draftID int64) error {
	for key, pp := range f.posts {
		if pp.DraftID == draftID {
			delete(f.posts, key)
		}
	}
	return nil
}

type fakeGuard struct {
	err   error
	calls int
}

func (f *fakeGuard) EnsureFresh(ctx context.Context, account *models.SocialAccount) error {
	f.calls++
	return f.err
}

type fakeAdapter struct {
	platform string
	result   *transfer.PublishResult
	err      error
	calls    int
}

func (f *fakeAdapter) Platform() string { return f.platform }

func (f *fakeAdapter) Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEnqueuer struct {
	drafts []int64
}

func (f *fakeEnqueuer) EnqueuePost(ctx context.Context, draftID int64, delay time.Duration) error {
	f.drafts = append(f.drafts, draftID)
	return nil
}

type fakeMedia struct {
	keys []string
}

func (f *fakeMedia) Upload(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	return f.keys, nil
}

func (f *fakeMedia) Resolve(ctx context.Context, key string) ([]byte, string, error) {
	return []byte("media-bytes"), "image/png", nil
}

func (f *fakeMedia) EnsurePublic(ctx context.Context, key string) (string, error) {
	return "https://media.example.com/" + key, nil
}

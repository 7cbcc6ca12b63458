package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func testTwitterAccount(t *testing.T) *models.SocialAccount {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte("user-access-token"), []byte(testSecretKey))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return &models.SocialAccount{
		ID:          1,
		Platform:    models.PlatformTwitter,
		AccountName: "tester",
		AccessToken: encrypted,
	}
}

func newTestTwitterService(serverURL string) *twitterService {
	return &twitterService{
		cfg:        config.Config{SecretKey: testSecretKey},
		media:      &fakeMedia{},
		apiBase:    serverURL,
		uploadBase: serverURL,
		client:     http.DefaultClient,
	}
}

func TestTwitterPublishTruncatesText(t *testing.T) {
	var gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("text-only tweet must use the bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		json.Unmarshal(body, &payload)
		gotText = payload.Text

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"1777"}}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	result, err := s.Publish(context.Background(), testTwitterAccount(t), strings.Repeat("x", 500), nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len([]rune(gotText)) != 280 {
		t.Errorf("sent %d runes, want text truncated to 280", len([]rune(gotText)))
	}
	if result.PlatformPostID != "1777" {
		t.Errorf("post id = %q, want 1777", result.PlatformPostID)
	}
	if result.Method != "oauth2_text_only" {
		t.Errorf("method = %q", result.Method)
	}
}

func TestTwitterPublishPrefersAccountOAuth1Credentials(t *testing.T) {
	var uploadAuth, tweetAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1.1/media/upload.json":
			uploadAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"media_id_string":"9001"}`))
		case "/2/tweets":
			tweetAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"314"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)
	s.cfg.TwitterOAuth1 = config.TwitterOAuth1{
		APIKey:       "app-key",
		APISecret:    "app-secret",
		AccessToken:  "env-token",
		AccessSecret: "env-secret",
	}

	account := testTwitterAccount(t)
	account.Metadata = models.JSONMap{
		"oauth1_token":  "acct-token",
		"oauth1_secret": "acct-secret",
	}

	result, err := s.Publish(context.Background(), account, "media post", []string{"key1"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Method != "oauth1a" || !result.HasMedia {
		t.Errorf("result = %+v, want the signed media path", result)
	}
	for _, auth := range []string{uploadAuth, tweetAuth} {
		if !strings.Contains(auth, `oauth_token="acct-token"`) {
			t.Errorf("request signed with %q, want the account token pair", auth)
		}
	}
}

func TestTwitterPublishFallsBackWithoutOAuth1(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"id":"42"}}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	result, err := s.Publish(context.Background(), testTwitterAccount(t), "with media", []string{"key1"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if !result.Fallback {
		t.Error("media draft published text-only must be flagged as a fallback")
	}
	if result.HasMedia {
		t.Error("fallback result must not claim media")
	}
}

func TestTwitterPublishSurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"title":"Forbidden"}`))
	}))
	defer server.Close()

	s := newTestTwitterService(server.URL)

	if _, err := s.Publish(context.Background(), testTwitterAccount(t), "hello", nil); err == nil {
		t.Fatal("expected an error from a 403 response")
	}
}

package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
)

func testInstagramAccount(t *testing.T) *models.SocialAccount {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte("ig-access-token"), []byte(testSecretKey))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return &models.SocialAccount{
		ID:             2,
		Platform:       models.PlatformInstagram,
		PlatformUserID: "ig123",
		AccountName:    "insta-tester",
		AccessToken:    encrypted,
	}
}

func newTestInstagramService(serverURL string) *instagramService {
	return &instagramService{
		cfg:       config.Config{SecretKey: testSecretKey},
		media:     &fakeMedia{},
		graphBase: serverURL,
		pollDelay: 0,
		client:    http.DefaultClient,
	}
}

func TestInstagramPublishRequiresMedia(t *testing.T) {
	s := newTestInstagramService("http://unused.invalid")

	if _, err := s.Publish(context.Background(), testInstagramAccount(t), "caption", nil); err == nil {
		t.Fatal("instagram publish without media must fail")
	}
}

func TestInstagramPublishContainerFlow(t *testing.T) {
	statusCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/ig123/media":
			w.Write([]byte(`{"id":"container-1"}`))
		case r.Method == "GET" && r.URL.Path == "/container-1":
			statusCalls++
			if statusCalls < 3 {
				w.Write([]byte(`{"status_code":"IN_PROGRESS"}`))
				return
			}
			w.Write([]byte(`{"status_code":"FINISHED"}`))
		case r.Method == "POST" && r.URL.Path == "/ig123/media_publish":
			w.Write([]byte(`{"id":"post-1"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s := newTestInstagramService(server.URL)

	result, err := s.Publish(context.Background(), testInstagramAccount(t), "caption", []string{"key1"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if result.PlatformPostID != "post-1" {
		t.Errorf("post id = %q, want post-1", result.PlatformPostID)
	}
	if statusCalls != 3 {
		t.Errorf("status polled %d times, want 3", statusCalls)
	}
	if !result.HasMedia || result.MediaCount != 1 {
		t.Errorf("result media flags wrong: %+v", result)
	}
}

func TestInstagramPublishStopsOnProcessingError(t *testing.T) {
	statusCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/ig123/media":
			w.Write([]byte(`{"id":"container-1"}`))
		case r.Method == "GET" && r.URL.Path == "/container-1":
			statusCalls++
			w.Write([]byte(`{"status_code":"ERROR"}`))
		default:
			t.Errorf("publish must not continue after a processing error: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	s := newTestInstagramService(server.URL)

	if _, err := s.Publish(context.Background(), testInstagramAccount(t), "caption", []string{"key1"}); err == nil {
		t.Fatal("expected an error when the container reports ERROR")
	}
	if statusCalls != 1 {
		t.Errorf("a remote ERROR must not be retried, polled %d times", statusCalls)
	}
}

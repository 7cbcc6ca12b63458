package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
)

// facebookService posts to a page feed. Photo posts go through the public
// media host; when that hop fails the post degrades to text-only.
type facebookService struct {
	cfg       config.Config
	media     MediaResolver
	graphBase string
	client    *http.Client
}

func NewFacebookService(cfg config.Config, media MediaResolver) PlatformPublisher {
	return &facebookService{
		cfg:       cfg,
		media:     media,
		graphBase: "https://graph.facebook.com/v21.0",
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *facebookService) Platform() string {
	return models.PlatformFacebook
}

func (s *facebookService) Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	text := truncate(content, policyFor(models.PlatformFacebook).TextLimit)

	if len(mediaKeys) > 0 {
		hostedURL, err := s.media.EnsurePublic(ctx, mediaKeys[0])
		if err == nil {
			result, photoErr := s.publishPhoto(ctx, account.PlatformUserID, accessToken, text, hostedURL)
			if photoErr == nil {
				return result, nil
			}
			slog.Info("facebook photo publish failed, falling back to text-only", "account", account.AccountName, "error", photoErr.Error())
		} else {
			slog.Info("facebook media host unavailable, falling back to text-only", "account", account.AccountName, "error", err.Error())
		}
	}

	result, err := s.publishFeed(ctx, account.PlatformUserID, accessToken, text)
	if err != nil {
		return nil, err
	}
	if len(mediaKeys) > 0 {
		result.Fallback = true
	}
	return result, nil
}

func (s *facebookService) publishPhoto(ctx context.Context, pageID, accessToken, caption, photoURL string) (*transfer.PublishResult, error) {
	postID, err := s.graphPost(ctx, fmt.Sprintf("%s/%s/photos", s.graphBase, pageID), map[string]string{
		"url":          photoURL,
		"caption":      caption,
		"access_token": accessToken,
	})
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{
		PlatformPostID: postID,
		HasMedia:       true,
		MediaCount:     1,
		Method:         "photo",
	}, nil
}

func (s *facebookService) publishFeed(ctx context.Context, pageID, accessToken, message string) (*transfer.PublishResult, error) {
	postID, err := s.graphPost(ctx, fmt.Sprintf("%s/%s/feed", s.graphBase, pageID), map[string]string{
		"message":      message,
		"access_token": accessToken,
	})
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{
		PlatformPostID: postID,
		Method:         "feed_text",
	}, nil
}

func (s *facebookService) graphPost(ctx context.Context, url string, payload map[string]string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code from Facebook: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", fmt.Errorf("no post ID returned from Facebook")
	}
	return result.ID, nil
}

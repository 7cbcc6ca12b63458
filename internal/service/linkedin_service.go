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

// linkedinService publishes UGC posts. Media goes through the two-step
// register/upload asset flow; if any part of it fails the post degrades to
// text-only instead of losing the whole attempt.
type linkedinService struct {
	cfg     config.Config
	media   MediaResolver
	apiBase string
	client  *http.Client
}

func NewLinkedinService(cfg config.Config, media MediaResolver) PlatformPublisher {
	return &linkedinService{
		cfg:     cfg,
		media:   media,
		apiBase: "https://api.linkedin.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *linkedinService) Platform() string {
	return models.PlatformLinkedin
}

func (s *linkedinService) Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	policy := policyFor(models.PlatformLinkedin)
	text := truncate(content, policy.TextLimit)
	author := fmt.Sprintf("urn:li:person:%s", account.PlatformUserID)

	if len(mediaKeys) > policy.MaxMedia {
		mediaKeys = mediaKeys[:policy.MaxMedia]
	}

	var assets []string
	for _, key := range mediaKeys {
		asset, err := s.uploadAsset(ctx, accessToken, author, key)
		if err != nil {
			slog.Info("linkedin asset upload failed", "key", key, "error", err.Error())
			continue
		}
		assets = append(assets, asset)
	}

	if len(assets) > 0 {
		result, err := s.createPost(ctx, accessToken, author, text, assets)
		if err == nil {
			return result, nil
		}
		slog.Info("linkedin media post failed, falling back to text-only", "account", account.AccountName, "error", err.Error())
	}

	result, err := s.createPost(ctx, accessToken, author, text, nil)
	if err != nil {
		return nil, err
	}
	if len(mediaKeys) > 0 {
		result.Fallback = true
	}
	return result, nil
}

// uploadAsset registers an upload slot and pushes the raw bytes to the URL
// LinkedIn hands back. Returns the asset URN.
func (s *linkedinService) uploadAsset(ctx context.Context, accessToken, author, key string) (string, error) {
	fileBytes, mimeType, err := s.media.Resolve(ctx, key)
	if err != nil {
		return "", err
	}

	uploadURL, asset, err := s.registerUpload(ctx, accessToken, author)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(fileBytes))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", mimeType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code from asset upload: %d: %s", resp.StatusCode, body)
	}

	return asset, nil
}

func (s *linkedinService) registerUpload(ctx context.Context, accessToken, author string) (uploadURL, asset string, err error) {
	payload := map[string]interface{}{
		"registerUploadRequest": map[string]interface{}{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   author,
			"serviceRelationships": []map[string]string{
				{
					"relationshipType": "OWNER",
					"identifier":       "urn:li:userGeneratedContent",
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/v2/assets?action=registerUpload", bytes.NewBuffer(body))
	if err != nil {
		return "", "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("unexpected status code from register upload: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism struct {
				Request struct {
					UploadURL string `json:"uploadUrl"`
				} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.Value.Asset == "" || result.Value.UploadMechanism.Request.UploadURL == "" {
		return "", "", fmt.Errorf("incomplete register upload response from LinkedIn")
	}

	return result.Value.UploadMechanism.Request.UploadURL, result.Value.Asset, nil
}

func (s *linkedinService) createPost(ctx context.Context, accessToken, author, text string, assets []string) (*transfer.PublishResult, error) {
	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": "NONE",
	}
	if len(assets) > 0 {
		media := make([]map[string]interface{}, 0, len(assets))
		for _, asset := range assets {
			media = append(media, map[string]interface{}{
				"status": "READY",
				"media":  asset,
			})
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = media
	}

	payload := map[string]interface{}{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code from LinkedIn: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	postID := result.ID
	if postID == "" {
		postID = resp.Header.Get("X-Restli-Id")
	}
	if postID == "" {
		return nil, fmt.Errorf("no post ID returned from LinkedIn")
	}

	method := "ugc_text"
	if len(assets) > 0 {
		method = "ugc_image"
	}

	return &transfer.PublishResult{
		PlatformPostID: postID,
		HasMedia:       len(assets) > 0,
		MediaCount:     len(assets),
		Method:         method,
	}, nil
}

package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
)

// twitterService publishes tweets. Media uploads need OAuth 1.0a signing:
// accounts connected with their own 1.0a token pair use that, the rest fall
// back to the app-level pair from the environment. When signing is available
// the media path is tried first and a failure falls back to an OAuth 2.0
// text-only tweet, so a broken image never forfeits the post.
type twitterService struct {
	cfg        config.Config
	media      MediaResolver
	apiBase    string
	uploadBase string
	client     *http.Client
}

func NewTwitterService(cfg config.Config, media MediaResolver) PlatformPublisher {
	return &twitterService{
		cfg:        cfg,
		media:      media,
		apiBase:    "https://api.twitter.com",
		uploadBase: "https://upload.twitter.com",
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *twitterService) Platform() string {
	return models.PlatformTwitter
}

func (s *twitterService) Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error) {
	policy := policyFor(models.PlatformTwitter)
	text := truncate(content, policy.TextLimit)

	if token, ok := s.oauth1UserToken(account); ok && len(mediaKeys) > 0 {
		result, err := s.publishWithMedia(ctx, token, text, mediaKeys, policy.MaxMedia)
		if err == nil {
			return result, nil
		}
		slog.Info("twitter media publish failed, falling back to text-only", "account", account.AccountName, "error", err.Error())
	}

	result, err := s.publishTextOnly(ctx, account, text)
	if err != nil {
		return nil, err
	}
	if len(mediaKeys) > 0 {
		result.Fallback = true
	}
	return result, nil
}

// oauth1UserToken picks the user token pair the media path signs with. An
// account that stored its own OAuth 1.0a credentials during connect wins over
// the app-level pair.
func (s *twitterService) oauth1UserToken(account *models.SocialAccount) (*oauth1.Token, bool) {
	o := s.cfg.TwitterOAuth1
	if o.APIKey == "" || o.APISecret == "" {
		return nil, false
	}
	if token, secret := account.OAuth1Token(); token != "" && secret != "" {
		return oauth1.NewToken(token, secret), true
	}
	if o.AccessToken != "" && o.AccessSecret != "" {
		return oauth1.NewToken(o.AccessToken, o.AccessSecret), true
	}
	return nil, false
}

func (s *twitterService) publishTextOnly(ctx context.Context, account *models.SocialAccount, text string) (*transfer.PublishResult, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/2/tweets", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code from Twitter: %d: %s", resp.StatusCode, body)
	}

	tweetID, err := decodeTweetID(resp.Body)
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{
		PlatformPostID: tweetID,
		Method:         "oauth2_text_only",
	}, nil
}

func (s *twitterService) publishWithMedia(ctx context.Context, token *oauth1.Token, text string, mediaKeys []string, maxMedia int) (*transfer.PublishResult, error) {
	o := s.cfg.TwitterOAuth1
	signed := oauth1.NewConfig(o.APIKey, o.APISecret).Client(ctx, token)
	signed.Timeout = 60 * time.Second

	if len(mediaKeys) > maxMedia {
		mediaKeys = mediaKeys[:maxMedia]
	}

	var mediaIDs []string
	for _, key := range mediaKeys {
		mediaID, err := s.uploadMedia(ctx, signed, key)
		if err != nil {
			slog.Info("twitter media upload failed", "key", key, "error", err.Error())
			continue
		}
		mediaIDs = append(mediaIDs, mediaID)
	}

	body := map[string]interface{}{"text": text}
	if len(mediaIDs) > 0 {
		body["media"] = map[string]interface{}{"media_ids": mediaIDs}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/2/tweets", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := signed.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code from Twitter: %d: %s", resp.StatusCode, respBody)
	}

	tweetID, err := decodeTweetID(resp.Body)
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{
		PlatformPostID: tweetID,
		HasMedia:       len(mediaIDs) > 0,
		MediaCount:     len(mediaIDs),
		Method:         "oauth1a",
	}, nil
}

func (s *twitterService) uploadMedia(ctx context.Context, signed *http.Client, key string) (string, error) {
	fileBytes, _, err := s.media.Resolve(ctx, key)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("media_data", base64.StdEncoding.EncodeToString(fileBytes))

	req, err := http.NewRequestWithContext(ctx, "POST", s.uploadBase+"/1.1/media/upload.json", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := signed.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code from media upload: %d: %s", resp.StatusCode, body)
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing upload response: %w", err)
	}
	if result.MediaIDString == "" {
		return "", fmt.Errorf("no media id returned from Twitter")
	}

	return result.MediaIDString, nil
}

func decodeTweetID(body io.Reader) (string, error) {
	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.Data.ID == "" {
		return "", fmt.Errorf("no tweet ID returned from Twitter")
	}
	return result.Data.ID, nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
)

// instagramService publishes a single image post: upload hop to the public
// media host, container creation, a bounded wait for remote processing, then
// the final publish. Instagram has no text-only posts, so a draft without
// media fails the attempt outright.
type instagramService struct {
	cfg       config.Config
	media     MediaResolver
	graphBase string
	pollDelay time.Duration
	client    *http.Client
}

func NewInstagramService(cfg config.Config, media MediaResolver) PlatformPublisher {
	return &instagramService{
		cfg:       cfg,
		media:     media,
		graphBase: "https://graph.facebook.com/v21.0",
		pollDelay: 5 * time.Second,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *instagramService) Platform() string {
	return models.PlatformInstagram
}

const containerPollAttempts = 10

func (s *instagramService) Publish(ctx context.Context, account *models.SocialAccount, content string, mediaKeys []string) (*transfer.PublishResult, error) {
	if len(mediaKeys) == 0 {
		return nil, errors.New("instagram requires at least one media file")
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	caption := truncate(content, policyFor(models.PlatformInstagram).TextLimit)

	hostedURL, err := s.media.EnsurePublic(ctx, mediaKeys[0])
	if err != nil {
		return nil, err
	}

	containerID, err := s.createContainer(ctx, account.PlatformUserID, accessToken, caption, hostedURL)
	if err != nil {
		return nil, err
	}

	if err := s.waitForProcessing(ctx, containerID, accessToken); err != nil {
		return nil, err
	}

	postID, err := s.publishContainer(ctx, account.PlatformUserID, accessToken, containerID)
	if err != nil {
		return nil, err
	}

	return &transfer.PublishResult{
		PlatformPostID: postID,
		HasMedia:       true,
		MediaCount:     1,
		Method:         "container",
	}, nil
}

func (s *instagramService) createContainer(ctx context.Context, accountID, accessToken, caption, imageURL string) (string, error) {
	payload := map[string]interface{}{
		"image_url":    imageURL,
		"caption":      caption,
		"access_token": accessToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/%s/media", s.graphBase, accountID), bytes.NewBuffer(body))
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
		return "", fmt.Errorf("unexpected status code from Instagram: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no container ID returned from Instagram")
	}
	return result.ID, nil
}

// waitForProcessing polls the container status until FINISHED. Attempts are
// capped and a remote ERROR is not retried.
func (s *instagramService) waitForProcessing(ctx context.Context, containerID, accessToken string) error {
	return retry.Do(
		func() error {
			status, err := s.containerStatus(ctx, containerID, accessToken)
			if err != nil {
				return err
			}
			switch status {
			case "FINISHED":
				return nil
			case "ERROR":
				return retry.Unrecoverable(errors.New("instagram rejected the media processing"))
			default:
				return fmt.Errorf("media still processing: %s", status)
			}
		},
		retry.Attempts(containerPollAttempts),
		retry.Delay(s.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("waiting for instagram media processing", "attempt", n+1, "error", err.Error())
		}),
	)
}

func (s *instagramService) containerStatus(ctx context.Context, containerID, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", s.graphBase, containerID, accessToken)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	var result struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return result.StatusCode, nil
}

func (s *instagramService) publishContainer(ctx context.Context, accountID, accessToken, containerID string) (string, error) {
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/%s/media_publish", s.graphBase, accountID), bytes.NewBuffer(body))
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
		return "", fmt.Errorf("unexpected status code from Instagram: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Instagram")
	}
	return result.ID, nil
}

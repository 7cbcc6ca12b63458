package service

import (
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
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
	"golang.org/x/oauth2"
)

// TokenGuard makes sure an account's access token is usable before an outbound
// publish. A successful refresh is persisted and reflected on the passed-in
// account; a dead refresh token disconnects the account.
type TokenGuard interface {
	EnsureFresh(ctx context.Context, account *models.SocialAccount) error
}

// ErrAccountDisconnected marks a token failure that cannot be repaired without
// the user reconnecting the account.
var ErrAccountDisconnected = errors.New("account requires reconnection")

type tokenService struct {
	cfg           config.Config
	ar            repository.SocialAccountRepository
	endpoints     map[string]oauth2.Endpoint
	probeURLs     map[string]string
	igRefreshBase string
	client        *http.Client
}

func NewTokenService(cfg config.Config, ar repository.SocialAccountRepository) TokenGuard {
	return &tokenService{
		cfg: cfg,
		ar:  ar,
		probeURLs: map[string]string{
			models.PlatformTwitter:   "https://api.twitter.com/2/users/me",
			models.PlatformFacebook:  "https://graph.facebook.com/v21.0/me",
			models.PlatformInstagram: "https://graph.instagram.com/me?fields=id",
			models.PlatformLinkedin:  "https://api.linkedin.com/v2/userinfo",
		},
		endpoints: map[string]oauth2.Endpoint{
			models.PlatformTwitter: {
				AuthURL:  "https://twitter.com/i/oauth2/authorize",
				TokenURL: "https://api.twitter.com/2/oauth2/token",
			},
			models.PlatformFacebook: {
				AuthURL:  "https://www.facebook.com/v21.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v21.0/oauth/access_token",
			},
			models.PlatformLinkedin: {
				AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
			},
		},
		igRefreshBase: "https://graph.instagram.com",
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenFreshnessSkew keeps a margin so a token does not expire mid-publish.
const tokenFreshnessSkew = 5 * time.Minute

// errTokenRejected marks a probe answered with 401/403.
var errTokenRejected = errors.New("token rejected by platform")

func (s *tokenService) EnsureFresh(ctx context.Context, account *models.SocialAccount) error {
	if !account.TokenExpiresAt.IsZero() && time.Until(account.TokenExpiresAt) > tokenFreshnessSkew {
		return nil
	}

	// With no stored expiry the token may still be fine; a cheap probe
	// decides instead of refreshing blindly.
	if account.TokenExpiresAt.IsZero() {
		err := s.probe(ctx, account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errTokenRejected) {
			return err
		}
	}

	slog.Info("refreshing expiring token", "account", account.AccountName, "platform", account.Platform)

	var (
		token *oauth2.Token
		err   error
	)
	if account.Platform == models.PlatformInstagram {
		token, err = s.refreshInstagram(ctx, account)
	} else {
		token, err = s.refreshOAuth2(ctx, account)
	}
	if err != nil {
		if errors.Is(err, ErrAccountDisconnected) {
			if dcErr := s.ar.SetConnected(ctx, account.ID, false); dcErr != nil {
				slog.Info(dcErr.Error())
			}
		}
		return err
	}

	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}
	var encryptedRefresh string
	if token.RefreshToken != "" {
		encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	if err := s.ar.SetToken(ctx, account.ID, encryptedAccess, encryptedRefresh, token.Expiry); err != nil {
		return err
	}

	account.AccessToken = encryptedAccess
	if encryptedRefresh != "" {
		account.RefreshToken = encryptedRefresh
	}
	account.TokenExpiresAt = token.Expiry
	return nil
}

// probe hits the platform's cheapest authenticated read. Transient failures
// are retried; a 401/403 means the token is dead.
func (s *tokenService) probe(ctx context.Context, account *models.SocialAccount) error {
	probeURL, ok := s.probeURLs[account.Platform]
	if !ok {
		return fmt.Errorf("no probe endpoint for platform %s", account.Platform)
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, "GET", probeURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
				return nil
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(errTokenRejected)
			default:
				return fmt.Errorf("unexpected status code from token probe: %d", resp.StatusCode)
			}
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func (s *tokenService) refreshOAuth2(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	if account.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored for %s", ErrAccountDisconnected, account.Platform)
	}

	refreshToken, err := utils.Decrypt(account.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	oauthCfg := s.oauthConfig(account.Platform)
	if oauthCfg == nil {
		return nil, fmt.Errorf("no oauth configuration for platform %s", account.Platform)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	var token *oauth2.Token
	err = retry.Do(
		func() error {
			var tokenErr error
			token, tokenErr = source.Token()
			if tokenErr == nil {
				return nil
			}
			var retrieveErr *oauth2.RetrieveError
			if errors.As(tokenErr, &retrieveErr) && retrieveErr.Response != nil &&
				retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
				return retry.Unrecoverable(tokenErr)
			}
			return tokenErr
		},
		retry.Attempts(3),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: %v", ErrAccountDisconnected, err)
		}
		return nil, err
	}

	return token, nil
}

// refreshInstagram uses the long-lived token exchange; Instagram has no
// refresh token, the current access token renews itself.
func (s *tokenService) refreshInstagram(ctx context.Context, account *models.SocialAccount) (*oauth2.Token, error) {
	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s", s.igRefreshBase, accessToken)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: instagram refresh rejected: %d: %s", ErrAccountDisconnected, resp.StatusCode, body)
		}
		return nil, fmt.Errorf("unexpected status code from Instagram: %d: %s", resp.StatusCode, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, errors.New("no access token returned from Instagram")
	}

	return &oauth2.Token{
		AccessToken: result.AccessToken,
		Expiry:      time.Now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (s *tokenService) oauthConfig(platform string) *oauth2.Config {
	endpoint, ok := s.endpoints[platform]
	if !ok {
		return nil
	}

	var creds config.PlatformOAuth
	switch platform {
	case models.PlatformTwitter:
		creds = s.cfg.Twitter
	case models.PlatformFacebook:
		creds = s.cfg.Facebook
	case models.PlatformLinkedin:
		creds = s.cfg.Linkedin
	default:
		return nil
	}

	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     endpoint,
	}
}

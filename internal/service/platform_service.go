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

	config "github.com/linkhubhq/linkhub-api/configs"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	"github.com/linkhubhq/linkhub-api/pkg/utils"
	"golang.org/x/oauth2"
)

// PlatformService runs the OAuth connect flow and manages the user's linked
// accounts.
type PlatformService interface {
	GetAuthURL(ctx context.Context, userID int64, platform string) (string, error)
	HandleCallback(ctx context.Context, platform, code, nonce string) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
}

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type platformService struct {
	cfg          config.Config
	ar           repository.SocialAccountRepository
	states       OAuthStateStore
	endpoints    map[string]oauth2.Endpoint
	scopes       map[string][]string
	profileBases map[string]string
	client       *http.Client
}

func NewPlatformService(cfg config.Config, ar repository.SocialAccountRepository, states OAuthStateStore) PlatformService {
	return &platformService{
		cfg:    cfg,
		ar:     ar,
		states: states,
		endpoints: map[string]oauth2.Endpoint{
			models.PlatformTwitter: {
				AuthURL:  "https://twitter.com/i/oauth2/authorize",
				TokenURL: "https://api.twitter.com/2/oauth2/token",
			},
			models.PlatformFacebook: {
				AuthURL:  "https://www.facebook.com/v21.0/dialog/oauth",
				TokenURL: "https://graph.facebook.com/v21.0/oauth/access_token",
			},
			models.PlatformInstagram: {
				AuthURL:  "https://api.instagram.com/oauth/authorize",
				TokenURL: "https://api.instagram.com/oauth/access_token",
			},
			models.PlatformLinkedin: {
				AuthURL:  "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
			},
		},
		scopes: map[string][]string{
			models.PlatformTwitter:   {"tweet.read", "tweet.write", "users.read", "offline.access"},
			models.PlatformFacebook:  {"pages_manage_posts", "pages_read_engagement"},
			models.PlatformInstagram: {"instagram_business_basic", "instagram_business_content_publish"},
			models.PlatformLinkedin:  {"openid", "profile", "w_member_social"},
		},
		profileBases: map[string]string{
			models.PlatformTwitter:   "https://api.twitter.com",
			models.PlatformFacebook:  "https://graph.facebook.com/v21.0",
			models.PlatformInstagram: "https://graph.instagram.com",
			models.PlatformLinkedin:  "https://api.linkedin.com",
		},
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *platformService) GetAuthURL(ctx context.Context, userID int64, platform string) (string, error) {
	oauthCfg := s.oauthConfig(platform)
	if oauthCfg == nil {
		return "", ErrUnsupportedPlatform
	}

	nonce, err := s.states.Issue(ctx, transfer.OAuthState{UserID: userID, Platform: platform})
	if err != nil {
		return "", err
	}

	return oauthCfg.AuthCodeURL(nonce, oauth2.AccessTypeOffline), nil
}

func (s *platformService) HandleCallback(ctx context.Context, platform, code, nonce string) error {
	state, err := s.states.Consume(ctx, nonce)
	if err != nil {
		return err
	}
	if state.Platform != platform {
		return fmt.Errorf("state issued for platform %s, callback came from %s", state.Platform, platform)
	}

	oauthCfg := s.oauthConfig(platform)
	if oauthCfg == nil {
		return ErrUnsupportedPlatform
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error exchanging code: %w", err)
	}

	profile, err := s.fetchProfile(ctx, platform, token.AccessToken)
	if err != nil {
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

	_, err = s.ar.Upsert(ctx, &models.SocialAccount{
		UserID:         state.UserID,
		Platform:       platform,
		PlatformUserID: profile.ID,
		AccountName:    profile.Name,
		ProfilePicture: profile.ProfilePicture,
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: token.Expiry,
		Metadata:       models.JSONMap{},
	})
	if err != nil {
		return err
	}

	slog.Info("connected social account", "user_id", state.UserID, "platform", platform, "account", profile.Name)
	return nil
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.ar.ListInfoByUserID(ctx, userID)
}

// Disconnect detaches an account without deleting it, so its publish history
// survives. Future fan-outs skip disconnected accounts.
func (s *platformService) Disconnect(ctx context.Context, userID, accountID int64) error {
	owned, err := s.ar.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return errors.New("social account not found")
	}
	return s.ar.SetConnected(ctx, accountID, false)
}

func (s *platformService) oauthConfig(platform string) *oauth2.Config {
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
	case models.PlatformInstagram:
		creds = s.cfg.Instagram
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
		Scopes:       s.scopes[platform],
	}
}

func (s *platformService) fetchProfile(ctx context.Context, platform, accessToken string) (*transfer.PlatformProfile, error) {
	base := s.profileBases[platform]

	var url string
	switch platform {
	case models.PlatformTwitter:
		url = base + "/2/users/me?user.fields=profile_image_url"
	case models.PlatformFacebook:
		url = base + "/me?fields=id,name,picture"
	case models.PlatformInstagram:
		url = base + "/me?fields=id,username"
	case models.PlatformLinkedin:
		url = base + "/v2/userinfo"
	default:
		return nil, ErrUnsupportedPlatform
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code from %s userinfo: %d: %s", platform, resp.StatusCode, body)
	}

	return decodeProfile(platform, resp.Body)
}

func decodeProfile(platform string, body io.Reader) (*transfer.PlatformProfile, error) {
	switch platform {
	case models.PlatformTwitter:
		var result struct {
			Data struct {
				ID              string `json:"id"`
				Name            string `json:"name"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"data"`
		}
		if err := json.NewDecoder(body).Decode(&result); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		return &transfer.PlatformProfile{ID: result.Data.ID, Name: result.Data.Name, ProfilePicture: result.Data.ProfileImageURL}, nil
	case models.PlatformFacebook:
		var result struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Picture struct {
				Data struct {
					URL string `json:"url"`
				} `json:"data"`
			} `json:"picture"`
		}
		if err := json.NewDecoder(body).Decode(&result); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		return &transfer.PlatformProfile{ID: result.ID, Name: result.Name, ProfilePicture: result.Picture.Data.URL}, nil
	case models.PlatformInstagram:
		var result struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}
		if err := json.NewDecoder(body).Decode(&result); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		return &transfer.PlatformProfile{ID: result.ID, Name: result.Username}, nil
	case models.PlatformLinkedin:
		var result struct {
			Sub     string `json:"sub"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.NewDecoder(body).Decode(&result); err != nil {
			return nil, fmt.Errorf("error parsing response: %w", err)
		}
		return &transfer.PlatformProfile{ID: result.Sub, Name: result.Name, ProfilePicture: result.Picture}, nil
	}
	return nil, ErrUnsupportedPlatform
}

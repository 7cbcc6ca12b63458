package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	"github.com/redis/go-redis/v9"
)

// OAuthStateStore issues single-use nonces for the OAuth connect flow. Each
// nonce lives in redis with a TTL and is consumed atomically, so a replayed
// callback fails.
type OAuthStateStore interface {
	Issue(ctx context.Context, state transfer.OAuthState) (string, error)
	Consume(ctx context.Context, nonce string) (*transfer.OAuthState, error)
}

var ErrStateNotFound = errors.New("oauth state expired or unknown")

type oauthStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOAuthStateStore(rdb *redis.Client) OAuthStateStore {
	return &oauthStateStore{rdb: rdb, ttl: 10 * time.Minute}
}

const oauthStateKeyPrefix = "oauth_state:"

func (s *oauthStateStore) Issue(ctx context.Context, state transfer.OAuthState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("error marshalling state: %w", err)
	}

	nonce := uuid.NewString()
	if err := s.rdb.Set(ctx, oauthStateKeyPrefix+nonce, payload, s.ttl).Err(); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return nonce, nil
}

func (s *oauthStateStore) Consume(ctx context.Context, nonce string) (*transfer.OAuthState, error) {
	val, err := s.rdb.GetDel(ctx, oauthStateKeyPrefix+nonce).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}

	var state transfer.OAuthState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("error parsing state: %w", err)
	}
	return &state, nil
}

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"scrape-planner/internal/common/database"
	"scrape-planner/internal/models"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisStore keeps sessions as JSON values under <prefix><session id>. Every
// Save refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rc *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: rc.GetClient(),
		prefix: rc.KeyPrefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.SessionContext, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	var sc models.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptSession, sessionID, err)
	}
	if sc.SessionID == "" {
		sc.SessionID = sessionID
	}
	return &sc, nil
}

func (s *RedisStore) Save(ctx context.Context, session *models.SessionContext) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.SessionID, err)
	}
	if err := s.client.Set(ctx, s.key(session.SessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", session.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return ids, nil
}

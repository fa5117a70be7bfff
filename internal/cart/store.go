package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store keeps buyer cart sessions in Redis. Each session is a hash of
// product id to quantity.
type Store struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (s Store) key(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:"
	}
	return prefix + sessionID
}

// Add increments the quantity of productID in the session cart.
func (s Store) Add(ctx context.Context, sessionID, productID string, qty int64) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("cart: session id is required")
	}
	key := s.key(sessionID)
	pipe := s.R.TxPipeline()
	pipe.HIncrBy(ctx, key, productID, qty)
	if s.TTL > 0 {
		pipe.Expire(ctx, key, s.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Items returns the session cart contents.
func (s Store) Items(ctx context.Context, sessionID string) (map[string]string, error) {
	if s.R == nil {
		return nil, errors.New("cart: redis client not configured")
	}
	return s.R.HGetAll(ctx, s.key(strings.TrimSpace(sessionID))).Result()
}

// Clear empties the session cart. Clearing an empty or unknown session is a no-op.
func (s Store) Clear(ctx context.Context, sessionID string) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	return s.R.Del(ctx, s.key(sessionID)).Err()
}

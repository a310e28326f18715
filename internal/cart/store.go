package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// RedisStore keeps cart sessions as JSON under "cart:<id>". Every read slides
// the expiry forward.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

func (s RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

func key(id string) string { return "cart:" + id }

// Load returns the cart or ErrNotFound.
func (s RedisStore) Load(ctx context.Context, id string) (Cart, error) {
	if s.R == nil {
		return Cart{}, errors.New("cart store not configured")
	}
	raw, err := s.R.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrNotFound
	}
	if err != nil {
		return Cart{}, err
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, err
	}
	_ = s.R.Expire(ctx, key(id), s.ttl()).Err()
	return c, nil
}

// Save writes the cart and resets its TTL.
func (s RedisStore) Save(ctx context.Context, c Cart) error {
	if s.R == nil {
		return errors.New("cart store not configured")
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.R.Set(ctx, key(c.ID), raw, s.ttl()).Err()
}

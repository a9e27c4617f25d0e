package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
)

const redisMaxRetries = 3

// redisIdentity is the stored JSON document for one identity.
type redisIdentity struct {
	ID             string     `json:"id"`
	RequesterID    string     `json:"requester_id"`
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token,omitempty"`
	ExpirationDate time.Time  `json:"expiration_date"`
	ETag           string     `json:"etag,omitempty"`
	LastAdded      *time.Time `json:"last_added,omitempty"`
}

// RedisRepository implements [models.IdentityRepository] on Redis.
//
// Each identity is a JSON string under {prefix}:identity:{id}; {prefix}:identities is the id set.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and verifies the connection with PING.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "trackwatch"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + ":identity:" + id
}

func (r *RedisRepository) setKey() string {
	return r.prefix + ":identities"
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return decodeIdentity(val)
}

func (r *RedisRepository) List(ctx context.Context) ([]*models.Identity, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list identity ids: %w", err)
	}
	sort.Strings(ids)

	identities := make([]*models.Identity, 0, len(ids))
	if len(ids) == 0 {
		return identities, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}

	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		identity, err := decodeIdentity([]byte(s))
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return identities, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, identity *models.Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	data, err := encodeIdentity(identity)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(identity.ID), data, 0)
		pipe.SAdd(ctx, r.setKey(), identity.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upsert identity: %v", shared.ErrPersistence, err)
	}
	return nil
}

func (r *RedisRepository) SaveTokens(ctx context.Context, id, access, refresh string, expires time.Time) error {
	return r.update(ctx, id, func(i *models.Identity) {
		i.AccessToken = access
		i.RefreshToken = refresh
		i.ExpirationDate = expires.UTC()
	})
}

func (r *RedisRepository) SaveProgress(ctx context.Context, id, etag string, lastAdded *time.Time) error {
	return r.update(ctx, id, func(i *models.Identity) {
		i.ETag = etag
		i.LastAdded = nil
		if lastAdded != nil {
			t := lastAdded.UTC()
			i.LastAdded = &t
		}
	})
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.setKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete identity: %v", shared.ErrPersistence, err)
	}
	if deleted.Val() == 0 {
		return fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
	}
	return nil
}

// update applies mutate to the stored document under WATCH, retrying when another writer wins.
func (r *RedisRepository) update(ctx context.Context, id string, mutate func(*models.Identity)) error {
	key := r.key(id)

	txf := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
		}
		if err != nil {
			return err
		}

		identity, err := decodeIdentity(val)
		if err != nil {
			return err
		}
		mutate(identity)

		data, err := encodeIdentity(identity)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	var err error
	for range redisMaxRetries {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrIdentityNotFound):
		return err
	default:
		return fmt.Errorf("%w: failed to update identity: %v", shared.ErrPersistence, err)
	}
}

func encodeIdentity(i *models.Identity) ([]byte, error) {
	data, err := json.Marshal(redisIdentity{
		ID:             i.ID,
		RequesterID:    i.RequesterID,
		AccessToken:    i.AccessToken,
		RefreshToken:   i.RefreshToken,
		ExpirationDate: i.ExpirationDate.UTC(),
		ETag:           i.ETag,
		LastAdded:      i.LastAdded,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identity: %w", err)
	}
	return data, nil
}

func decodeIdentity(data []byte) (*models.Identity, error) {
	var doc redisIdentity
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return &models.Identity{
		ID:             doc.ID,
		RequesterID:    doc.RequesterID,
		AccessToken:    doc.AccessToken,
		RefreshToken:   doc.RefreshToken,
		ExpirationDate: doc.ExpirationDate,
		ETag:           doc.ETag,
		LastAdded:      doc.LastAdded,
	}, nil
}

var (
	_ models.IdentityRepository = (*SQLiteRepository)(nil)
	_ models.IdentityRepository = (*PostgresRepository)(nil)
	_ models.IdentityRepository = (*RedisRepository)(nil)
)

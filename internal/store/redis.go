package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"student-records/internal/util"
)

const renewalKeyPrefix = "srm:renewal:"

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// RedisRenewalStore keeps renewal credentials as expiring redis keys.
type RedisRenewalStore struct {
	r *Redis
}

func NewRedisRenewalStore(r *Redis) *RedisRenewalStore {
	return &RedisRenewalStore{r: r}
}

func (s *RedisRenewalStore) Save(ctx context.Context, tokenHash string, userID uint, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.r.Client.Set(ctx, renewalKeyPrefix+tokenHash, encodeRenewal(userID, expiresAt), ttl).Err(); err != nil {
		return util.Upstream("save renewal credential", err)
	}
	return nil
}

func (s *RedisRenewalStore) Consume(ctx context.Context, tokenHash string) (uint, time.Time, error) {
	val, err := s.r.Client.GetDel(ctx, renewalKeyPrefix+tokenHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, ErrRenewalNotFound
		}
		return 0, time.Time{}, util.Upstream("consume renewal credential", err)
	}
	userID, exp, err := decodeRenewal(val)
	if err != nil {
		return 0, time.Time{}, util.Upstream("consume renewal credential", err)
	}
	return userID, exp, nil
}

func (s *RedisRenewalStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.r.Client.Del(ctx, renewalKeyPrefix+tokenHash).Err(); err != nil {
		return util.Upstream("delete renewal credential", err)
	}
	return nil
}

// values are "<userID>|<unix expiry>"
func encodeRenewal(userID uint, expiresAt time.Time) string {
	return fmt.Sprintf("%d|%d", userID, expiresAt.Unix())
}

func decodeRenewal(v string) (uint, time.Time, error) {
	id, exp, ok := strings.Cut(v, "|")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("malformed renewal value %q", v)
	}
	uid, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed renewal owner: %w", err)
	}
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed renewal expiry: %w", err)
	}
	return uint(uid), time.Unix(unix, 0).UTC(), nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"otp-auth-service/internal/client"
	"otp-auth-service/internal/hashing"
	"otp-auth-service/internal/model"
	"otp-auth-service/internal/repository"
	"otp-auth-service/internal/util"
)

const (
	otpPrefix = "otp:"

	fieldCode      = "code"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"

	// Keys outlive the record's expiry so a late verify still reports
	// expiry instead of absence; the sweep removes them.
	retentionGrace = 5 * time.Minute
	maxTxRetries   = 10
)

// OTPCache stores challenges as Redis hashes keyed by a secret-keyed hash of
// the email. Read-decide-write sequences run in WATCH/MULTI transactions.
type OTPCache struct {
	client *client.RedisClient
	hasher *hashing.Hasher
	clock  util.Clock
}

func NewOTPCache(client *client.RedisClient, hasher *hashing.Hasher, clock util.Clock) *OTPCache {
	return &OTPCache{client: client, hasher: hasher, clock: clock}
}

func (c *OTPCache) key(email string) string {
	return otpPrefix + c.hasher.Key(email)
}

func (c *OTPCache) Put(ctx context.Context, rec *model.OTPRecord) error {
	key := c.key(rec.Email)

	ttl := rec.ExpiresAt.Sub(c.clock.Now()) + retentionGrace
	if ttl < retentionGrace {
		ttl = retentionGrace
	}

	_, err := c.client.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeRecord(rec)...)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		util.Error("Failed to set OTP in cache", zap.String("key", key), zap.Duration("ttl", ttl), zap.Error(err))
		return fmt.Errorf("failed to set OTP in cache: %w", err)
	}
	util.Debug("OTP cached successfully", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *OTPCache) Get(ctx context.Context, email string) (*model.OTPRecord, error) {
	key := c.key(email)

	fields, err := c.client.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get OTP from cache: %w", err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrNotFound
	}
	return decodeRecord(email, fields)
}

func (c *OTPCache) Delete(ctx context.Context, email string) error {
	key := c.key(email)

	if err := c.client.Client.Del(ctx, key).Err(); err != nil {
		util.Error("Failed to delete OTP from cache", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete OTP from cache: %w", err)
	}
	util.Debug("OTP deleted from cache", zap.String("key", key))
	return nil
}

func (c *OTPCache) Update(ctx context.Context, email string, fn repository.UpdateFunc) error {
	return c.update(ctx, c.key(email), email, fn)
}

// SweepExpired scans every OTP key and deletes the expired ones, each under
// its own WATCH so a concurrent re-issue is never removed.
func (c *OTPCache) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	keys, err := c.client.ScanKeys(ctx, otpPrefix+"*", 100)
	if err != nil {
		return 0, fmt.Errorf("failed to scan OTP keys: %w", err)
	}

	removed := 0
	for _, key := range keys {
		var expired bool
		err := c.update(ctx, key, "", func(rec *model.OTPRecord) (repository.Mutation, error) {
			expired = rec.Expired(now)
			if expired {
				return repository.Delete, nil
			}
			return repository.Keep, nil
		})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			continue
		case err != nil:
			util.Warn("Failed to sweep OTP key", zap.String("key", key), zap.Error(err))
			continue
		}
		if expired {
			removed++
		}
	}

	return removed, nil
}

func (c *OTPCache) update(ctx context.Context, key, email string, fn repository.UpdateFunc) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var fnErr error

		err := c.client.Client.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return repository.ErrNotFound
			}
			rec, err := decodeRecord(email, fields)
			if err != nil {
				return err
			}

			var mutation repository.Mutation
			mutation, fnErr = fn(rec)

			switch mutation {
			case repository.Save:
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.HSet(ctx, key, encodeRecord(rec)...)
					return nil
				})
			case repository.Delete:
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			util.Debug("OTP transaction conflict, retrying", zap.String("key", key), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return err
		}
		return fnErr
	}

	return repository.ErrConflict
}

func encodeRecord(rec *model.OTPRecord) []interface{} {
	return []interface{}{
		fieldCode, rec.Code,
		fieldExpiresAt, rec.ExpiresAt.UnixMilli(),
		fieldAttempts, rec.Attempts,
	}
}

func decodeRecord(email string, fields map[string]string) (*model.OTPRecord, error) {
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTP expiry format: %w", err)
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, fmt.Errorf("invalid attempt count format: %w", err)
	}
	return &model.OTPRecord{
		Email:     email,
		Code:      fields[fieldCode],
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		Attempts:  attempts,
	}, nil
}

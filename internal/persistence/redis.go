package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/modmail-service/internal/config"
)

const (
	ticketCounterKey      = "modmail:ticket_counter"
	translationCachePrefx = "modmail:translation:"
	// ticketCounterWrap keeps anonymous ticket numbers at four digits.
	ticketCounterWrap = 10000
)

// Redis wraps the go-redis client. It backs the anonymous ticket-name
// counter and the translation cache.
type Redis struct {
	Client *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client, logger: logger}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// NextTicketNumber returns the next sequential ticket number. Numbers wrap
// at 10000 so anonymous ticket names stay four digits.
func (r *Redis) NextTicketNumber(ctx context.Context) (int64, error) {
	if r == nil || r.Client == nil {
		return 0, errors.New("redis client not configured")
	}
	n, err := r.Client.Incr(ctx, ticketCounterKey).Result()
	if err != nil {
		return 0, err
	}
	n = n % ticketCounterWrap
	if n == 0 {
		n = ticketCounterWrap
	}
	return n, nil
}

// GetTranslation looks up a cached translation.
func (r *Redis) GetTranslation(ctx context.Context, language, text string) (string, bool) {
	if r == nil || r.Client == nil {
		return "", false
	}
	val, err := r.Client.Get(ctx, translationKey(language, text)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// SetTranslation caches a translation. Cache failures are logged and
// swallowed; translation correctness never depends on the cache.
func (r *Redis) SetTranslation(ctx context.Context, language, text, translated string) {
	if r == nil || r.Client == nil {
		return
	}
	if err := r.Client.Set(ctx, translationKey(language, text), translated, 0).Err(); err != nil {
		r.logger.Debug("translation cache write failed", zap.Error(err))
	}
}

func translationKey(language, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s%s:%s", translationCachePrefx, language, hex.EncodeToString(sum[:]))
}

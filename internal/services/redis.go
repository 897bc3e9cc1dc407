package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

const (
	statusCacheTTL = 10 * time.Minute
	// verifyLockTTL must outlast the longest verification run so a crashed
	// worker's lock eventually expires.
	verifyLockTTL = 10 * time.Minute
)

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// CacheBookingStatus stores a booking's status together with its owner so
// the poll endpoint can answer without hitting Postgres. The owner id
// travels in the cached value so the endpoint can enforce ownership on
// cache hits the same way the database path does.
func CacheBookingStatus(ctx context.Context, bookingID string, ownerID uint, status string) error {
	key := fmt.Sprintf("booking:status:%s", bookingID)
	return RedisClient.Set(ctx, key, formatCachedStatus(ownerID, status), statusCacheTTL).Err()
}

// GetCachedBookingStatus retrieves a cached booking status and the id of
// the guest who owns the booking
func GetCachedBookingStatus(ctx context.Context, bookingID string) (uint, string, error) {
	key := fmt.Sprintf("booking:status:%s", bookingID)
	raw, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return 0, "", err
	}
	ownerID, status, ok := parseCachedStatus(raw)
	if !ok {
		return 0, "", fmt.Errorf("malformed cached status for booking %s", bookingID)
	}
	return ownerID, status, nil
}

func formatCachedStatus(ownerID uint, status string) string {
	return fmt.Sprintf("%d|%s", ownerID, status)
}

func parseCachedStatus(raw string) (uint, string, bool) {
	sep := strings.IndexByte(raw, '|')
	if sep <= 0 {
		return 0, "", false
	}
	ownerID, err := strconv.ParseUint(raw[:sep], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return uint(ownerID), raw[sep+1:], true
}

// InvalidateBookingStatus drops a booking's cached status
func InvalidateBookingStatus(ctx context.Context, bookingID string) {
	key := fmt.Sprintf("booking:status:%s", bookingID)
	RedisClient.Del(ctx, key)
}

// AcquireVerificationLock takes the single-flight lock for one booking's
// verification run. Returns false when another run holds it.
func AcquireVerificationLock(ctx context.Context, bookingID string) (bool, error) {
	key := fmt.Sprintf("booking:verify:%s", bookingID)
	return RedisClient.SetNX(ctx, key, "1", verifyLockTTL).Result()
}

// ReleaseVerificationLock releases the single-flight lock
func ReleaseVerificationLock(ctx context.Context, bookingID string) {
	key := fmt.Sprintf("booking:verify:%s", bookingID)
	RedisClient.Del(ctx, key)
}

// VerificationLocker adapts the Redis lock to the verifier's Locker port.
type VerificationLocker struct{}

func (VerificationLocker) AcquireVerification(ctx context.Context, bookingID string) (bool, error) {
	return AcquireVerificationLock(ctx, bookingID)
}

func (VerificationLocker) ReleaseVerification(ctx context.Context, bookingID string) {
	ReleaseVerificationLock(ctx, bookingID)
}

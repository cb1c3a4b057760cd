package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sokomart/marketplace-api/internal/domain"
)

const (
	lockTTL         = 10 * time.Second
	lockAttempts    = 3
	lockRetryDelay  = 50 * time.Millisecond
	paymentLockKeyf = "payment_lock:"
)

// Locker serializes mutations on a single payment across processes.
type Locker interface {
	Acquire(ctx context.Context, paymentID string) (func(), error)
}

var releaseLockScript = redis.NewScript(`
    if redis.call("GET", KEYS[1]) == ARGV[1] then
        return redis.call("DEL", KEYS[1])
    end
    return 0
`)

// PaymentLocker is the redis-backed Locker. Two concurrent webhook
// deliveries, or a webhook racing a manual admin release, take turns instead
// of fighting over the optimistic version check.
type PaymentLocker struct {
	redis redis.UniversalClient
}

func NewPaymentLocker(client redis.UniversalClient) *PaymentLocker {
	return &PaymentLocker{redis: client}
}

// Acquire takes a short-TTL lock on the payment and returns its release
// function. Returns domain.ErrPaymentLocked when another holder keeps the
// lock through every attempt.
func (l *PaymentLocker) Acquire(ctx context.Context, paymentID string) (func(), error) {
	key := paymentLockKeyf + paymentID
	token := uuid.New().String()

	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := l.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}

		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()

				releaseLockScript.Run(releaseCtx, l.redis, []string{key}, token)
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return nil, domain.ErrPaymentLocked
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finevents/apiserver/internal/metrics"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher is the only place password cryptography happens. bcrypt is
// CPU-heavy, so concurrent operations are bounded and callers wait on ctx.
type PasswordHasher struct {
	cost    int
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
}

// NewPasswordHasher returns a hasher using the given bcrypt cost that runs at
// most concurrency hash/verify operations at once.
func NewPasswordHasher(cost, concurrency int, m *metrics.Metrics) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &PasswordHasher{
		cost:    cost,
		sem:     semaphore.NewWeighted(int64(concurrency)),
		metrics: m,
	}
}

// Hash returns a salted bcrypt hash. Two calls with the same input differ.
func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)
	defer h.metrics.ObserveHash("hash", time.Now())

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches hash. A mismatch is (false, nil);
// an error is returned only for a malformed hash or a cancelled ctx.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)
	defer h.metrics.ObserveHash("verify", time.Now())

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost, 2, nil)
}

func TestHashThenVerify(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	for _, password := range []string{"Secret123", "correct horse battery staple", "ünïcødé-pass"} {
		hash, err := h.Hash(ctx, password)
		require.NoError(t, err)
		assert.NotEqual(t, password, hash)

		ok, err := h.Verify(ctx, password, hash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = h.Verify(ctx, password+"x", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher()

	first, err := h.Hash(context.Background(), "Secret123")
	require.NoError(t, err)
	second, err := h.Hash(context.Background(), "Secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher()

	ok, err := h.Verify(context.Background(), "Secret123", "not-a-bcrypt-hash")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformedHash)
}

func TestHashHonorsContextWhileSaturated(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost, 1, nil)
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Hash(ctx, "Secret123")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewPasswordHasherClampsConfig(t *testing.T) {
	h := NewPasswordHasher(1000, 0, nil)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)
	assert.True(t, h.sem.TryAcquire(1))
	assert.False(t, h.sem.TryAcquire(1))
}

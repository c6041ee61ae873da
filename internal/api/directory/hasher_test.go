package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher(bcrypt.MinCost)

	t.Run("HashIsNotPlaintext", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		assert.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "password123", hash)
	})

	t.Run("NonDeterministic", func(t *testing.T) {
		// bcrypt salts every call: same input, different outputs, both verify.
		first, err := hasher.Hash("password123")
		assert.NoError(t, err)
		second, err := hasher.Hash("password123")
		assert.NoError(t, err)

		assert.NotEqual(t, first, second)
		assert.NoError(t, hasher.Compare(first, "password123"))
		assert.NoError(t, hasher.Compare(second, "password123"))
	})

	t.Run("CompareRejectsWrongPassword", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		assert.NoError(t, err)
		assert.Error(t, hasher.Compare(hash, "wrong-password"))
	})

	t.Run("OutOfRangeCostFallsBackToDefault", func(t *testing.T) {
		h := NewBcryptHasher(99)
		hash, err := h.Hash("password123")
		assert.NoError(t, err)
		cost, err := bcrypt.Cost([]byte(hash))
		assert.NoError(t, err)
		assert.Equal(t, bcrypt.DefaultCost, cost)
	})
}

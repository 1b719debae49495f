package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agentchat/models"
)

func TestUserAgentRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserAgentRepository(db, zap.NewNop())

	entitlement, err := repo.Create(&models.UserAgent{
		UserID:    "u1",
		AgentID:   "a1",
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, entitlement.ID)

	t.Run("active grant is found for the pair", func(t *testing.T) {
		got, err := repo.GetActiveByUserAndAgent("u1", "a1")
		assert.NoError(t, err)
		assert.Equal(t, entitlement.ID, got.ID)
		assert.False(t, got.PurchasedAt.IsZero())
	})

	t.Run("usage increments survive repeated calls", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementUsage(entitlement.ID))
		}
		got, err := repo.GetActiveByUserAndAgent("u1", "a1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.MessageCount)
		assert.NotNil(t, got.LastUsedAt)
	})

	t.Run("expiry can be moved", func(t *testing.T) {
		future := time.Now().Add(30 * 24 * time.Hour).UTC()
		require.NoError(t, repo.UpdateExpiry(entitlement.ID, &future))
		got, err := repo.GetActiveByUserAndAgent("u1", "a1")
		require.NoError(t, err)
		require.NotNil(t, got.ExpiresAt)
		assert.WithinDuration(t, future, *got.ExpiresAt, time.Second)
	})

	t.Run("deactivated grant is no longer found", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(entitlement.ID))
		_, err := repo.GetActiveByUserAndAgent("u1", "a1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("operations on unknown ids report not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.Deactivate("missing"), ErrNotFound)
		assert.ErrorIs(t, repo.IncrementUsage("missing"), ErrNotFound)
	})
}

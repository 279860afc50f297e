package store

import (
	"context"
	"testing"
	"time"

	"github.com/Prateekbala/workflow-test/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresStore starts a throwaway PostgreSQL container. Skipped when no
// container runtime is available.
func setupPostgresStore(t *testing.T) *Store {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flowmate_test"),
		postgres.WithUsername("flowmate"),
		postgres.WithPassword("flowmate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New("postgres", dsn)
	require.NoError(t, err)
	return s
}

func TestPostgresLinkingLifecycle(t *testing.T) {
	s := setupPostgresStore(t)

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        "alice@example.com",
		PasswordHash: "hashed_password",
	}
	require.NoError(t, s.CreateUser(user))

	zap := &models.Zap{
		ID:     uuid.New().String(),
		UserID: user.ID,
		Name:   "Email notifier",
		Status: models.ZapStatusDraft,
		Trigger: &models.Trigger{
			ID:   uuid.New().String(),
			Type: "email_received",
		},
	}
	require.NoError(t, s.CreateZap(zap))

	// Link twice; second consent omits the refresh token
	expiry := time.Now().Add(time.Hour)
	require.NoError(t, s.SaveProviderTokenAndActivate(zap.ID, "gmail", "access-1", "refresh-1", expiry))
	require.NoError(t, s.SaveProviderTokenAndActivate(zap.ID, "gmail", "access-2", "", expiry))

	token, err := s.GetProviderTokenByZapID(zap.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", token.AccessToken)
	assert.Equal(t, "refresh-1", token.RefreshToken)

	found, err := s.GetZapByIDAndOwner(zap.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ZapStatusActive, found.Status)

	count, err := s.CountLinkedTokens()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dekyc/apiserver/internal/roster"
	"github.com/dekyc/apiserver/types"
)

func TestMemoryUserRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(roster.Seed())

	before, err := repo.List(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, "U-1001", types.StatusApproved))

	after, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, after[0].Status)
	assert.Equal(t, types.StatusPending, before[0].Status, "earlier snapshots are not affected")
	assert.Equal(t, before[1:], after[1:])

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "U-9999", types.StatusRejected), ErrNotFound)
}

func TestMemoryUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(roster.Seed())

	user, err := repo.Create(ctx, types.User{Name: "New User", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "U-1006", user.ID)

	_, err = repo.Create(ctx, types.User{Name: "Dup", Email: "NEW@example.com"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetByEmail(ctx, "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestMemoryUserRepository_Seed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(nil)

	n, err := repo.Seed(ctx, roster.Seed())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = repo.Seed(ctx, roster.Seed())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)
}

func TestMemoryUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository(roster.Seed())

	user, err := repo.GetByID(ctx, "U-1002")
	require.NoError(t, err)
	user.Role = "admin"

	_, err = repo.Update(ctx, user)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "U-1002")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)

	_, err = repo.Update(ctx, types.User{ID: "U-0000"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDocumentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocumentRepository()

	_, err := repo.Create(ctx, types.Document{ID: "a", UserID: "U-1001"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.Document{ID: "b", UserID: "U-1002"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, types.Document{ID: "a", UserID: "U-1001"})
	assert.ErrorIs(t, err, ErrConflict)

	docs, err := repo.ListByUser(ctx, "U-1001")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	at := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)
	doc, err := repo.UpdateStatus(ctx, "a", types.DocumentVerified, at)
	require.NoError(t, err)
	require.NotNil(t, doc.VerifiedAt)
	assert.Equal(t, at, *doc.VerifiedAt)

	doc, err = repo.UpdateStatus(ctx, "a", types.DocumentRejected, at)
	require.NoError(t, err)
	assert.Equal(t, types.DocumentRejected, doc.Status)
	assert.Nil(t, doc.VerifiedAt)

	_, err = repo.UpdateStatus(ctx, "zzz", types.DocumentVerified, at)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "a"), ErrNotFound)

	_, err = repo.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

package bunstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/photoshare/photoauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)
	require.NoError(t, store.CreateSchema(context.Background()))
	return store
}

func newIdentity(email string) *photoauth.Identity {
	now := time.Now().UTC()
	return &photoauth.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     "alice",
		PasswordHash: "$2a$04$hash",
		Role:         photoauth.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStoreCreateAndFind(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	id := newIdentity("alice@example.com")
	require.NoError(t, store.Create(ctx, id))

	byEmail, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id.ID, byEmail.ID)
	assert.Equal(t, photoauth.RoleUser, byEmail.Role)
	assert.Empty(t, byEmail.RefreshToken)
	assert.False(t, byEmail.Confirmed)
	assert.WithinDuration(t, id.CreatedAt, byEmail.CreatedAt, time.Millisecond)

	byID, err := store.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)

	_, err = store.FindByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, photoauth.ErrAccountNotFound)

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreDuplicateEmail(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newIdentity("alice@example.com")))
	err := store.Create(ctx, newIdentity("alice@example.com"))
	assert.ErrorIs(t, err, photoauth.ErrAccountExists)
}

func TestStoreRefreshTokenSwap(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := newIdentity("alice@example.com")
	require.NoError(t, store.Create(ctx, id))

	require.NoError(t, store.UpdateRefreshToken(ctx, id.ID, "r1"))

	ok, err := store.SwapRefreshToken(ctx, id.ID, "stale", "r2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.SwapRefreshToken(ctx, id.ID, "r1", "r2")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RefreshToken)

	require.NoError(t, store.UpdateRefreshToken(ctx, id.ID, ""))
	got, err = store.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.Empty(t, got.RefreshToken)

	assert.ErrorIs(t, store.UpdateRefreshToken(ctx, "missing", "x"), photoauth.ErrAccountNotFound)
}

func TestStoreSwapSingleWinner(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := newIdentity("alice@example.com")
	require.NoError(t, store.Create(ctx, id))
	require.NoError(t, store.UpdateRefreshToken(ctx, id.ID, "r1"))

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.SwapRefreshToken(ctx, id.ID, "r1", uuid.NewString())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStoreCreateAssigningRole(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	first := newIdentity("alice@example.com")
	require.NoError(t, store.CreateAssigningRole(ctx, first, photoauth.RoleAdmin))
	assert.Equal(t, photoauth.RoleAdmin, first.Role)

	second := newIdentity("bob@example.com")
	require.NoError(t, store.CreateAssigningRole(ctx, second, photoauth.RoleAdmin))
	assert.Equal(t, photoauth.RoleUser, second.Role)

	got, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, photoauth.RoleAdmin, got.Role)

	err = store.CreateAssigningRole(ctx, newIdentity("bob@example.com"), photoauth.RoleAdmin)
	assert.ErrorIs(t, err, photoauth.ErrAccountExists)
}

func TestStoreCreateAssigningRoleConcurrent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := newIdentity(uuid.NewString() + "@example.com")
			assert.NoError(t, store.CreateAssigningRole(ctx, id, photoauth.RoleAdmin))
		}()
	}
	wg.Wait()

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, n)
	admins := 0
	for _, u := range users {
		if u.Role == photoauth.RoleAdmin {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestStoreUpdateConfirmed(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newIdentity("alice@example.com")))

	changed, err := store.UpdateConfirmed(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.UpdateConfirmed(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.UpdateConfirmed(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, photoauth.ErrAccountNotFound)
}

func TestStoreRoleAvatarAndHash(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id := newIdentity("alice@example.com")
	require.NoError(t, store.Create(ctx, id))

	updated, err := store.UpdateRole(ctx, id.ID, photoauth.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, photoauth.RoleModerator, updated.Role)

	updated, err = store.UpdateAvatar(ctx, "alice@example.com", "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", updated.Avatar)

	require.NoError(t, store.UpdatePasswordHash(ctx, id.ID, "$argon2id$new"))
	got, err := store.FindByID(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", got.PasswordHash)

	_, err = store.UpdateRole(ctx, "missing", photoauth.RoleAdmin)
	assert.ErrorIs(t, err, photoauth.ErrAccountNotFound)
	_, err = store.UpdateAvatar(ctx, "ghost@example.com", "x")
	assert.ErrorIs(t, err, photoauth.ErrAccountNotFound)
}

func TestStoreList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, email := range []string{"b@example.com", "a@example.com"} {
		require.NoError(t, store.Create(ctx, newIdentity(email)))
	}
	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

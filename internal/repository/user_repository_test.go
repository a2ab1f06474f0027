package repository

import (
	"context"
	"testing"
	"time"

	"stockroom/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUser(email, role string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderpl",
		FirstName:    "Dana",
		LastName:     "Picker",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestProperty_StoredPasswordsAreBcryptHashes(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("the stored hash verifies the password and is not the plaintext", prop.ForAll(
		func(email string, password string) bool {
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", email)

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
			if err != nil {
				return false
			}

			user := newTestUser(email, domain.RoleUser)
			user.PasswordHash = string(hash)
			if err := repo.Create(ctx, user); err != nil {
				t.Logf("create failed: %v", err)
				return false
			}

			stored, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("find failed: %v", err)
				return false
			}

			return stored.PasswordHash != password &&
				bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(password)) == nil
		},
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	truncate(t, "users")
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestUser("dup@stock.room", domain.RoleUser)))
	err := repo.Create(ctx, newTestUser("dup@stock.room", domain.RoleUser))
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestUserRepository_RolesAndCount(t *testing.T) {
	truncate(t, "users")
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	first := newTestUser("first@stock.room", domain.RoleAdmin)
	second := newTestUser("second@stock.room", domain.RoleUser)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "first@stock.room", users[0].Email)

	updated, err := repo.UpdateRole(ctx, second.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, updated.Role)

	_, err = repo.UpdateRole(ctx, uuid.New(), domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	truncate(t, "users")
	users := NewUserRepository(testDB)
	sessions := NewSessionRepository(testDB)
	ctx := context.Background()

	user := newTestUser("session@stock.room", domain.RoleUser)
	require.NoError(t, users.Create(ctx, user))

	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, token := range []string{"tok-a", "tok-b"} {
		require.NoError(t, sessions.Create(ctx, &domain.Session{
			ID:        uuid.New(),
			UserID:    user.ID,
			Token:     token,
			ExpiresAt: now.Add(time.Hour),
			CreatedAt: now,
		}))
	}

	found, err := sessions.FindByToken(ctx, "tok-a")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)

	require.NoError(t, sessions.Revoke(ctx, "tok-a"))
	_, err = sessions.FindByToken(ctx, "tok-a")
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.ErrorIs(t, sessions.Revoke(ctx, "missing"), ErrSessionNotFound)

	require.NoError(t, sessions.RevokeAllForUser(ctx, user.ID))
	_, err = sessions.FindByToken(ctx, "tok-b")
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskdeck/backend/internal/model"
)

type fakeAdminStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*model.User
}

func newFakeAdminStore() *fakeAdminStore {
	return &fakeAdminStore{users: map[int64]*model.User{}}
}

func (f *fakeAdminStore) CreateUser(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	f.nextID++
	user := &model.User{ID: f.nextID, Username: username, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (f *fakeAdminStore) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (f *fakeAdminStore) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAdminStore) FindDuplicateUser(ctx context.Context, excludeID int64, username, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == excludeID {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAdminStore) ListUsers(ctx context.Context, search string, page, limit int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := []model.User{}
	for _, u := range f.users {
		all = append(all, *u)
	}
	return all, int64(len(all)), nil
}

func (f *fakeAdminStore) UpdateUser(ctx context.Context, userID int64, username, email, passwordHash string, role model.Role) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.Username = username
	user.Email = email
	user.PasswordHash = passwordHash
	user.Role = role
	user.UpdatedAt = time.Now()
	copied := *user
	return &copied, nil
}

func (f *fakeAdminStore) DeleteUser(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[userID]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, userID)
	return nil
}

func TestUsersCreateDefaultsRole(t *testing.T) {
	svc := NewUsersService(newFakeAdminStore())
	ctx := context.Background()

	profile, err := svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob@x.com", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, profile.Role)

	admin, err := svc.Create(ctx, model.CreateUserRequest{Username: "root", Email: "root@x.com", Password: "Passw0rd", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	_, err = svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob2@x.com", Password: "Passw0rd", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUsersCreateDuplicate(t *testing.T) {
	svc := NewUsersService(newFakeAdminStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob@x.com", Password: "Passw0rd"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "new@x.com", Password: "Passw0rd"})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestUsersUpdateDuplicateCheckExcludesSelf(t *testing.T) {
	store := newFakeAdminStore()
	svc := NewUsersService(store)
	ctx := context.Background()

	bob, err := svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob@x.com", Password: "Passw0rd"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, model.CreateUserRequest{Username: "eve", Email: "eve@x.com", Password: "Passw0rd"})
	require.NoError(t, err)

	// Resubmitting your own email is not a conflict.
	sameEmail := "bob@x.com"
	updated, err := svc.Update(ctx, bob.ID, model.UpdateUserRequest{Email: &sameEmail})
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", updated.Email)

	// Taking someone else's is.
	taken := "eve@x.com"
	_, err = svc.Update(ctx, bob.ID, model.UpdateUserRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestUsersUpdateRehashesPassword(t *testing.T) {
	store := newFakeAdminStore()
	svc := NewUsersService(store)
	ctx := context.Background()

	bob, err := svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob@x.com", Password: "Passw0rd"})
	require.NoError(t, err)
	before := store.users[bob.ID].PasswordHash

	newPassword := "N3wPassword"
	_, err = svc.Update(ctx, bob.ID, model.UpdateUserRequest{Password: &newPassword})
	require.NoError(t, err)

	after := store.users[bob.ID].PasswordHash
	assert.NotEqual(t, before, after)
	assert.NotEqual(t, newPassword, after)
}

func TestUsersDelete(t *testing.T) {
	store := newFakeAdminStore()
	svc := NewUsersService(store)
	ctx := context.Background()

	bob, err := svc.Create(ctx, model.CreateUserRequest{Username: "bob", Email: "bob@x.com", Password: "Passw0rd"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, bob.ID), ErrSelfDelete)
	require.NoError(t, svc.Delete(ctx, bob.ID, bob.ID+100))
	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, bob.ID+100), ErrUserNotFound)
}

func TestUsersGetNotFound(t *testing.T) {
	svc := NewUsersService(newFakeAdminStore())

	_, err := svc.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

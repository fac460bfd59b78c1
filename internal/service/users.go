package service

import (
	"context"
	"errors"
	"strings"

	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfDelete   = errors.New("cannot delete your own account")
	ErrInvalidRole  = errors.New("invalid role")
)

type UserAdminStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
	FindDuplicateUser(ctx context.Context, excludeID int64, username, email string) (bool, error)
	ListUsers(ctx context.Context, search string, page, limit int) ([]model.User, int64, error)
	UpdateUser(ctx context.Context, userID int64, username, email, passwordHash string, role model.Role) (*model.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// UsersService is the admin-facing roster: list, inspect, create, update and
// delete accounts. All callers are expected to have passed the admin role
// filter already.
type UsersService struct {
	store UserAdminStore
}

func NewUsersService(store UserAdminStore) *UsersService {
	return &UsersService{store: store}
}

func (s *UsersService) List(ctx context.Context, search string, page, limit int) (*model.UserListResponse, error) {
	page, limit = clampPage(page, limit)

	users, total, err := s.store.ListUsers(ctx, strings.TrimSpace(search), page, limit)
	if err != nil {
		return nil, err
	}

	profiles := make([]model.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}

	return &model.UserListResponse{
		Users:      profiles,
		Pagination: paginate(page, limit, total),
	}, nil
}

func (s *UsersService) Get(ctx context.Context, userID int64) (*model.UserProfile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *UsersService) Create(ctx context.Context, req model.CreateUserRequest) (*model.UserProfile, error) {
	username := strings.TrimSpace(req.Username)
	email := normalizeEmail(req.Email)

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	_, err := s.store.GetUserByUsernameOrEmail(ctx, username, email)
	if err == nil {
		return nil, ErrDuplicateIdentity
	}
	if !db.IsNoRows(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, username, email, string(hash), role)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	profile := user.Profile()
	return &profile, nil
}

// Update applies a partial change to a user. The duplicate-identity check
// excludes the user's own row, so resubmitting the current username or email
// is not a conflict.
func (s *UsersService) Update(ctx context.Context, userID int64, req model.UpdateUserRequest) (*model.UserProfile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	username := user.Username
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
	}
	email := user.Email
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
	}
	role := user.Role
	if req.Role != nil {
		role = *req.Role
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
	}

	if username != user.Username || email != user.Email {
		taken, err := s.store.FindDuplicateUser(ctx, userID, username, email)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateIdentity
		}
	}

	passwordHash := user.PasswordHash
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		passwordHash = string(hash)
	}

	updated, err := s.store.UpdateUser(ctx, userID, username, email, passwordHash, role)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	profile := updated.Profile()
	return &profile, nil
}

// Delete removes an account. The caller cannot delete itself; refresh tokens
// and todos disappear with the row via FK cascade.
func (s *UsersService) Delete(ctx context.Context, userID, currentUserID int64) error {
	if userID == currentUserID {
		return ErrSelfDelete
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if db.IsNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func paginate(page, limit int, total int64) model.Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return model.Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: pages,
	}
}

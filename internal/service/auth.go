package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const accessTokenType = "access"

var (
	ErrDuplicateIdentity   = errors.New("username or email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrMissingToken        = errors.New("missing access token")
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token expired")
	ErrUnknownSubject      = errors.New("unknown subject")
	ErrForbidden           = errors.New("forbidden")
	ErrTokenConflict       = errors.New("refresh token collision")
	ErrMisconfigured       = errors.New("auth config invalid")
)

type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string, role model.Role) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)
}

// RefreshTokenLedger is the persistent record of issued refresh tokens.
// RevokeRefreshToken must be a conditional update on the revoked flag: when
// two rotations race on one row, exactly one caller may observe true.
type RefreshTokenLedger interface {
	InsertRefreshToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	GetLiveRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID int64) (bool, error)
	RevokeRefreshTokenByValue(ctx context.Context, token string) error
	RevokeAllRefreshTokensForUser(ctx context.Context, userID int64) error
}

type AuthService struct {
	users      UserStore
	ledger     RefreshTokenLedger
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type accessClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

func NewAuthService(users UserStore, ledger RefreshTokenLedger, cfg config.AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET is required", ErrMisconfigured)
	}

	accessTTL, err := time.ParseDuration(cfg.JWTAccessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_ACCESS_TTL", ErrMisconfigured)
	}

	refreshTTL, err := time.ParseDuration(cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JWT_REFRESH_TTL", ErrMisconfigured)
	}

	return &AuthService{
		users:      users,
		ledger:     ledger,
		jwtSecret:  []byte(cfg.JWTSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// EnsureAdmin creates the seed admin account on first boot. It is a no-op
// when the seed config is incomplete or the account already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) (bool, error) {
	if cfg.Username == "" || cfg.Email == "" || cfg.Password == "" {
		return false, nil
	}

	_, err := s.users.GetUserByUsernameOrEmail(ctx, cfg.Username, normalizeEmail(cfg.Email))
	if err == nil {
		return false, nil
	}
	if !db.IsNoRows(err) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	if _, err := s.users.CreateUser(ctx, cfg.Username, normalizeEmail(cfg.Email), string(hash), model.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*model.AuthResponse, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	_, err := s.users.GetUserByUsernameOrEmail(ctx, username, email)
	if err == nil {
		return nil, ErrDuplicateIdentity
	}
	if !db.IsNoRows(err) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, username, email, string(hash), model.RoleUser)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	return s.issueTokenPairWithProfile(ctx, user)
}

// Login verifies credentials and issues a fresh token pair. Every refresh
// token previously live for the user is revoked first, so at most one chain
// issued by login exists at a time. Unknown email and wrong password are
// deliberately the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.ledger.RevokeAllRefreshTokensForUser(ctx, user.ID); err != nil {
		return nil, err
	}

	return s.issueTokenPairWithProfile(ctx, user)
}

// Refresh rotates a refresh token: the presented value is revoked and a new
// pair is issued for the same user. A token that never existed, has expired,
// or was already rotated fails identically, so replaying a stolen rotated
// token yields no diagnostic signal. The revocation is conditional on the
// row still being live; the loser of a concurrent double refresh gets
// ErrInvalidRefreshToken, never a second valid pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrInvalidRefreshToken
	}

	record, err := s.ledger.GetLiveRefreshToken(ctx, refreshToken)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	revoked, err := s.ledger.RevokeRefreshToken(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if !revoked {
		return nil, ErrInvalidRefreshToken
	}

	return s.issueTokenPair(ctx, record.UserID)
}

// Logout revokes the presented refresh token. Unknown or already-revoked
// tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.ledger.RevokeRefreshTokenByValue(ctx, refreshToken)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	return s.ledger.RevokeAllRefreshTokensForUser(ctx, userID)
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// Authenticate verifies a bearer access token and resolves the current user
// record behind its subject. Expiry is surfaced as a distinct error so the
// request layer can tell clients to refresh rather than re-login.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.AuthUser, error) {
	userID, err := s.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}

	return user.Identity(), nil
}

// Authorize checks an authenticated identity against a role allow-list.
func Authorize(identity *model.AuthUser, roles ...model.Role) error {
	for _, role := range roles {
		if identity.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// IssueAccessToken mints a signed, self-contained access token for userID.
func (s *AuthService) IssueAccessToken(userID int64) (string, int64, error) {
	now := time.Now()
	claims := accessClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.accessTTL.Seconds()), nil
}

// VerifyAccessToken checks signature, expiry and token class, returning the
// embedded subject id. It is a pure function of the signing secret and the
// token; the ledger is never consulted.
func (s *AuthService) VerifyAccessToken(tokenStr string) (int64, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidAccessToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrAccessTokenExpired
		}
		return 0, ErrInvalidAccessToken
	}
	if !token.Valid || claims.TokenType != accessTokenType {
		return 0, ErrInvalidAccessToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidAccessToken
	}
	return userID, nil
}

// NewRefreshSecret returns 256 bits of crypto/rand entropy, base64 raw-URL
// encoded. The value is opaque on purpose: revocation has to go through the
// ledger.
func NewRefreshSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, userID int64) (*model.AuthResponse, error) {
	accessToken, expiresIn, err := s.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := NewRefreshSecret()
	if err != nil {
		return nil, err
	}

	if err := s.ledger.InsertRefreshToken(ctx, userID, refreshToken, time.Now().Add(s.refreshTTL)); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrTokenConflict
		}
		return nil, err
	}

	return &model.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

func (s *AuthService) issueTokenPairWithProfile(ctx context.Context, user *model.User) (*model.AuthResponse, error) {
	resp, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	resp.User = &profile
	return resp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

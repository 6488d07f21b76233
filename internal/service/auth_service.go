package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"projecthub/internal/model"
	"projecthub/internal/repository"
	"projecthub/pkg/apperr"
	"projecthub/pkg/util"
)

const minPasswordLength = 6

type AuthService struct {
	users     UserStore
	sessions  SessionStore
	jwtSecret string
	tokenTTL  time.Duration
	now       Clock
	logger    *zap.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, jwtSecret string, tokenTTL time.Duration, now Clock, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		now:       clockOrDefault(now),
		logger:    logger,
	}
}

type RegisterInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     model.UserRole `json:"role"`
}

// AuthResult 注册和登录都返回用户与 bearer token
type AuthResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Register creates a new user and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email, err := parseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validationf("password must be at least %d characters", minPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = model.RoleGeneral
	}
	if !role.Valid() {
		return nil, apperr.Validationf("unknown role %q", role)
	}

	hash, err := util.HashPassword(in.Password)
	if errors.Is(err, util.ErrPasswordTooLong) {
		return nil, apperr.Validation("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, storeErr(err, "user")
	}

	s.logger.Info("User registered", zap.String("user_id", u.ID))
	return s.issue(u)
}

// Login checks user credentials and returns a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid email or password")
		}
		return nil, storeErr(err, "user")
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if !u.Active {
		return nil, apperr.Unauthenticated("account is deactivated")
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *model.User) (*AuthResult, error) {
	token, claims, err := util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL, s.now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Resolve 把 token 解析为仍然存在且 active 的用户；否则一律 Unauthenticated
func (s *AuthService) Resolve(ctx context.Context, token string) (*model.User, *util.Claims, error) {
	if token == "" {
		return nil, nil, apperr.Unauthenticated("missing bearer token")
	}
	claims, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		return nil, nil, apperr.Unauthenticated("invalid or expired token")
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	if revoked {
		return nil, nil, apperr.Unauthenticated("token has been revoked")
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperr.Unauthenticated("user no longer exists")
		}
		return nil, nil, storeErr(err, "user")
	}
	if !u.Active {
		return nil, nil, apperr.Unauthenticated("account is deactivated")
	}
	return u, claims, nil
}

// Logout 吊销当前 token
func (s *AuthService) Logout(ctx context.Context, claims *util.Claims) error {
	if claims == nil || claims.ExpiresAt == nil {
		return apperr.Unauthenticated("missing session")
	}
	if err := s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// parseEmail 校验并规范化邮箱
func parseEmail(raw string) (string, error) {
	email := model.NormalizeEmail(raw)
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validationf("invalid email %q", raw)
	}
	return email, nil
}

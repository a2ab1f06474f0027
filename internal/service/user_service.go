package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	DefaultAccessTokenExpiration  = 15 * time.Minute
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// TokenSettings configures signing and lifetime of issued tokens
type TokenSettings struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role string) (*domain.User, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      TokenSettings
	logger      *zap.Logger
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens TokenSettings,
	logger *zap.Logger,
) UserService {
	if tokens.AccessExpiry <= 0 {
		tokens.AccessExpiry = DefaultAccessTokenExpiration
	}
	if tokens.RefreshExpiry <= 0 {
		tokens.RefreshExpiry = DefaultRefreshTokenExpiration
	}
	return &userService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		logger:      logger,
	}
}

// Register creates a new account. The first account ever registered becomes admin.
func (s *userService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("role", role))
	return user, nil
}

// Login authenticates a user and returns an access token and a refresh session token
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.openSession(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to open session: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout revokes the refresh session. Unknown tokens count as logged out.
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessionRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// RefreshToken issues a new access token for a live refresh session
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	session, err := s.sessionRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) || errors.Is(err, repository.ErrSessionRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find session: %w", err)
	}

	if session.Expired(time.Now()) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns all accounts
func (s *userService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetRole changes the role of a user and ends their sessions so the new
// role is picked up at the next login
func (s *userService) SetRole(ctx context.Context, userID uuid.UUID, role string) (*domain.User, error) {
	if !domain.IsValidRole(role) {
		return nil, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	if err := s.sessionRepo.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("Failed to revoke sessions after role change",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("User role changed", zap.String("user_id", userID.String()), zap.String("role", role))
	return user, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken signs an HS256 token carrying user_id and role
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// openSession stores a new refresh session and returns its token
func (s *userService) openSession(ctx context.Context, user *domain.User) (string, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.tokens.RefreshExpiry),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", err
	}

	return session.Token, nil
}

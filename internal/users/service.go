package users

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/auth"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrUsernameTaken indicates the requested username is already registered.
	ErrUsernameTaken = errors.New("users: username already taken")
	// ErrEmailTaken indicates the requested email is already registered.
	ErrEmailTaken = errors.New("users: user already exists")
	// ErrUnknownEmail indicates no account exists for the supplied email.
	ErrUnknownEmail = errors.New("users: user not found")
	// ErrInvalidCredentials indicates the password did not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrInvalidRefreshToken indicates the refresh token is unknown or stale.
	ErrInvalidRefreshToken = errors.New("users: invalid refresh token")
	// ErrUserNotFound indicates the identity no longer resolves to an account.
	ErrUserNotFound = errors.New("users: user not found")
)

// TokenPair bundles the credentials returned by authentication operations.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// ServiceConfig describes the dependencies required by the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Tokens   *auth.TokenIssuer
	Clock    func() time.Time
}

// Service owns account registration, authentication and profile updates.
type Service struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
	now    func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("users: token issuer required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, tokens: cfg.Tokens, now: clock}, nil
}

// SignupRequest carries validated registration input.
type SignupRequest struct {
	Username string
	Email    string
	Password string
	Role     Role
}

// Signup registers a new account and issues its first token pair.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (User, TokenPair, error) {
	db := s.db.WithContext(ctx)

	var existing User
	err := db.Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		return User{}, TokenPair{}, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, TokenPair{}, err
	}

	err = db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return User{}, TokenPair{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, TokenPair{}, err
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return User{}, TokenPair{}, err
	}

	user := User{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Password: hashed,
		Avatar:   defaultAvatarURL(req.Username),
		Role:     req.Role,
	}
	if err := db.Create(&user).Error; err != nil {
		return User{}, TokenPair{}, err
	}

	pair, err := s.rotateTokens(ctx, &user)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Login authenticates by email and password and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, email, password string) (User, TokenPair, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, TokenPair{}, ErrUnknownEmail
	}
	if err != nil {
		return User{}, TokenPair{}, err
	}

	if !auth.CheckPassword(user.Password, password) {
		return User{}, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.rotateTokens(ctx, &user)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// Logout revokes the stored refresh token matching the presented one.
// An unknown token is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	subject, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil
	}

	var user User
	err = s.db.WithContext(ctx).Where("id = ?", subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.RefreshToken == "" || !auth.CheckRefreshToken(user.RefreshToken, refreshToken) {
		return nil
	}

	return s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", user.ID).
		Update("refresh_token", "").Error
}

// Refresh validates the presented refresh token against the stored hash
// and rotates the pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (User, TokenPair, error) {
	subject, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return User{}, TokenPair{}, ErrInvalidRefreshToken
	}

	var user User
	err = s.db.WithContext(ctx).Where("id = ?", subject).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, TokenPair{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return User{}, TokenPair{}, err
	}
	if user.RefreshToken == "" || !auth.CheckRefreshToken(user.RefreshToken, refreshToken) {
		return User{}, TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.rotateTokens(ctx, &user)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// GetByID loads a user by identifier.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateRequest carries optional profile fields; empty values are left unchanged.
type UpdateRequest struct {
	Username string
	Email    string
	Avatar   string
	Password string
}

// UpdateProfile applies a partial profile update and returns the stored user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateRequest) (User, error) {
	updates := map[string]interface{}{}
	if req.Username != "" {
		updates["username"] = req.Username
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Avatar != "" {
		updates["avatar"] = req.Avatar
	}
	if req.Password != "" {
		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			return User{}, err
		}
		updates["password"] = hashed
	}

	if len(updates) > 0 {
		result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates)
		if result.Error != nil {
			return User{}, result.Error
		}
		if result.RowsAffected == 0 {
			return User{}, ErrUserNotFound
		}
	}
	return s.GetByID(ctx, userID)
}

func (s *Service) rotateTokens(ctx context.Context, user *User) (TokenPair, error) {
	access, _, err := s.tokens.IssueAccessToken(user.ID, string(user.Role))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	hashed, err := auth.HashRefreshToken(refresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", user.ID).
		Update("refresh_token", hashed).Error; err != nil {
		return TokenPair{}, err
	}
	user.RefreshToken = hashed
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func defaultAvatarURL(username string) string {
	return "https://api.dicebear.com/7.x/thumbs/svg?seed=" + url.QueryEscape(username)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/fleetops/internal/config"
	"github.com/bitfantasy/fleetops/internal/fleet/entity"
	"github.com/bitfantasy/fleetops/internal/fleet/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditLogRepository
	rdb       *redis.Client
	cfg       *config.Config
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo *repository.UserRepository, auditRepo *repository.AuditLogRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		rdb:       rdb,
		cfg:       cfg,
	}
}

// TokenPair Token对
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login 邮箱密码登录。成功与失败都写审计
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*entity.User, *TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		log := &entity.AuditLog{
			Action:     entity.AuditActionLoginFailed,
			EntityType: "user",
			Details:    fmt.Sprintf("Failed login attempt for %s", email),
			IPAddress:  ip,
		}
		if user != nil {
			log.UserID = &user.ID
			log.EntityID = &user.ID
		}
		if err := s.auditRepo.Create(ctx, log); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrInvalidCredential
	}

	if !user.IsActive {
		return nil, nil, ErrInactiveAccount
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	log := &entity.AuditLog{
		UserID:     &user.ID,
		Action:     entity.AuditActionLogin,
		EntityType: "user",
		EntityID:   &user.ID,
		Details:    "Successful login",
		IPAddress:  ip,
	}
	if err := s.auditRepo.Create(ctx, log); err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// Refresh 用refresh token换新access token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["type"] != "refresh" {
		return "", fmt.Errorf("not a refresh token")
	}

	// Redis可用时校验jti是否仍在白名单（登出即失效）
	if s.rdb != nil {
		jti, _ := claims["jti"].(string)
		if _, err := s.rdb.Get(ctx, "token:refresh:"+jti).Result(); err != nil {
			return "", fmt.Errorf("refresh token revoked")
		}
	}

	sub, _ := claims["sub"].(string)
	user, err := s.userRepo.FindByID(ctx, sub)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", ErrInactiveAccount
	}

	return s.signAccessToken(user, time.Now())
}

// Logout 注销refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if s.rdb == nil || refreshToken == "" {
		return nil
	}
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if jti, _ := claims["jti"].(string); jti != "" {
			s.rdb.Del(ctx, "token:refresh:"+jti)
		}
	}
	return nil
}

// GetUser 查当前用户
func (s *AuthService) GetUser(ctx context.Context, id string) (*entity.User, error) {
	return s.userRepo.FindByID(ctx, id)
}

// ChangePassword 修改密码，校验旧密码并写审计
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next, ip string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	return s.auditRepo.Create(ctx, &entity.AuditLog{
		UserID:     &user.ID,
		Action:     entity.AuditActionPasswordChanged,
		EntityType: "user",
		EntityID:   &user.ID,
		Details:    "Password changed",
		IPAddress:  ip,
	})
}

func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()

	accessToken, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshTokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if s.rdb != nil {
		s.rdb.Set(ctx, "token:refresh:"+refreshJti, user.ID, s.cfg.JWT.RefreshTokenExpire)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

func (s *AuthService) signAccessToken(user *entity.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"uid":   user.ID,
		"email": user.Email,
		"name":  user.FullName(),
		"role":  user.Role,
		"iss":   s.cfg.JWT.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":   uuid.New().String(),
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return tokenString, nil
}

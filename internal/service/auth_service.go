package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geniemath/internal/config"
	"geniemath/internal/model"
	"geniemath/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("아이디 또는 비밀번호가 올바르지 않습니다")
	ErrInvalidToken       = errors.New("登录凭证无效")
)

type AuthService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: repository.NewUserRepository(db),
		cfg:      cfg,
	}
}

// Register 注册新用户，赠送注册이용권
func (s *AuthService) Register(ctx context.Context, username, name, password string) error {
	if username == "" || name == "" || password == "" {
		return errors.New("用户名、昵称、密码都不能为空")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Credits:      s.cfg.Business.SignupBonus,
	}

	return s.userRepo.Create(ctx, user)
}

// Login 校验密码并签发 JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	ttl := time.Duration(s.cfg.Auth.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.Username,
		"name": user.Name,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	})

	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		return "", nil, fmt.Errorf("签发凭证失败: %w", err)
	}

	return signed, user, nil
}

// VerifyToken 校验 JWT 并取出用户名
func (s *AuthService) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("签名算法不支持: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	username, _ := claims["sub"].(string)
	if username == "" {
		return "", ErrInvalidToken
	}
	return username, nil
}

// GetBalance 查询이용권余额，每次都读库（不做会话缓存）
func (s *AuthService) GetBalance(ctx context.Context, username string) (*model.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

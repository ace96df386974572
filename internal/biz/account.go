package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/constants"
	sidebarErrors "github.com/Sophix-ma/Mindra/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User 账号领域对象
type User struct {
	UserID    string
	Username  string
	Balance   float64
	CreatedAt time.Time
}

// UserRepo 账号数据层接口（定义在 biz 层）
type UserRepo interface {
	CreateUser(ctx context.Context, user *User, hashedPassword string) error
	// GetUserByCredentials 按用户名和密码哈希查询，用户名区分大小写；未命中返回 (nil, nil)
	GetUserByCredentials(ctx context.Context, username, hashedPassword string) (*User, error)
	// GetUserByUsername 按用户名查询（区分大小写），未命中返回 (nil, nil)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUsername(ctx context.Context, userID, hashedPassword, newUsername string) error
	UpdatePassword(ctx context.Context, userID, oldHashedPassword, newHashedPassword string) error
}

// AccountUseCase 账号业务逻辑
type AccountUseCase struct {
	repo UserRepo
	log  *log.Helper

	jwtSecret      string
	activationCode string
	initialBalance float64
}

// NewAccountUseCase 创建账号 UseCase
func NewAccountUseCase(repo UserRepo, c *conf.Bootstrap, logger log.Logger) *AccountUseCase {
	uc := &AccountUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
	if c != nil && c.Auth != nil {
		uc.jwtSecret = c.Auth.JwtSecret
		uc.activationCode = c.Auth.ActivationCode
	}
	if c != nil && c.Billing != nil {
		uc.initialBalance = c.Billing.InitialBalance
	}
	return uc
}

// HashPassword 密码 sha256 摘要（十六进制小写）
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Register 注册新账号，需要有效的激活码
func (uc *AccountUseCase) Register(ctx context.Context, username, password, activationCode string) (*User, error) {
	if uc.activationCode != "" && activationCode != uc.activationCode {
		return nil, sidebarErrors.New(403, sidebarErrors.ErrCodeBadActivationCode,
			sidebarErrors.ReasonBadActivationCode, "激活码无效")
	}

	existing, err := uc.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, sidebarErrors.New(409, sidebarErrors.ErrCodeUsernameTaken,
			sidebarErrors.ReasonUsernameTaken, "用户名已被占用")
	}

	user := &User{
		UserID:   uuid.New().String(),
		Username: username,
		Balance:  uc.initialBalance,
	}
	if err := uc.repo.CreateUser(ctx, user, HashPassword(password)); err != nil {
		return nil, err
	}

	uc.log.Infof("user registered: userID=%s, username=%s", user.UserID, user.Username)
	return user, nil
}

// Login 校验凭证并签发 7 天有效的登录令牌
func (uc *AccountUseCase) Login(ctx context.Context, username, password string) (*User, string, error) {
	user, err := uc.repo.GetUserByCredentials(ctx, username, HashPassword(password))
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", sidebarErrors.New(401, sidebarErrors.ErrCodeWrongCredentials,
			sidebarErrors.ReasonWrongCredentials, "用户名或密码错误")
	}

	token, err := uc.signToken(user.UserID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// VerifyToken 校验登录令牌，返回其中的用户标识
func (uc *AccountUseCase) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(uc.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", sidebarErrors.New(401, sidebarErrors.ErrCodeTokenInvalid,
			sidebarErrors.ReasonTokenInvalid, "登录令牌无效或已过期")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", sidebarErrors.New(401, sidebarErrors.ErrCodeTokenInvalid,
			sidebarErrors.ReasonTokenInvalid, "登录令牌无效或已过期")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", sidebarErrors.New(401, sidebarErrors.ErrCodeTokenInvalid,
			sidebarErrors.ReasonTokenInvalid, "登录令牌无效或已过期")
	}
	return sub, nil
}

// ChangeUsername 修改用户名，需要当前密码
func (uc *AccountUseCase) ChangeUsername(ctx context.Context, userID, currentPassword, newUsername string) error {
	existing, err := uc.repo.GetUserByUsername(ctx, newUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return sidebarErrors.New(409, sidebarErrors.ErrCodeUsernameTaken,
			sidebarErrors.ReasonUsernameTaken, "用户名已被占用")
	}
	return uc.repo.UpdateUsername(ctx, userID, HashPassword(currentPassword), newUsername)
}

// ChangePassword 修改密码，需要当前密码
func (uc *AccountUseCase) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	return uc.repo.UpdatePassword(ctx, userID, HashPassword(currentPassword), HashPassword(newPassword))
}

func (uc *AccountUseCase) signToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.AddDate(0, 0, constants.TokenValidDays).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.jwtSecret))
}

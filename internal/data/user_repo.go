package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// userRepo 账号相关数据访问
type userRepo struct {
	data *Data
	log  *log.Helper
}

// NewUserRepo 创建账号 repo（返回 biz.UserRepo 接口）
func NewUserRepo(data *Data, logger log.Logger) biz.UserRepo {
	return &userRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateUser 创建账号
func (r *userRepo) CreateUser(ctx context.Context, user *biz.User, hashedPassword string) error {
	m := model.User{
		UserID:        user.UserID,
		Username:      user.Username,
		Password:      hashedPassword,
		CreditBalance: user.Balance,
	}
	return r.data.db.WithContext(ctx).Create(&m).Error
}

// GetUserByCredentials 按用户名+密码哈希查询
// 用户名严格区分大小写：数据库命中后在应用侧做一次逐字节比对，
// 避免依赖各库排序规则（MySQL 默认排序规则不区分大小写）
func (r *userRepo) GetUserByCredentials(ctx context.Context, username, hashedPassword string) (*biz.User, error) {
	var m model.User
	err := r.data.db.WithContext(ctx).
		Where("username = ? AND password = ?", username, hashedPassword).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("GetUserByCredentials failed: username=%s, error=%v", username, err)
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if m.Username != username || m.Password != hashedPassword {
		return nil, nil
	}
	return toBizUser(&m), nil
}

// GetUserByUsername 按用户名查询（区分大小写）
func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*biz.User, error) {
	var m model.User
	err := r.data.db.WithContext(ctx).Where("username = ?", username).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("GetUserByUsername failed: username=%s, error=%v", username, err)
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if m.Username != username {
		return nil, nil
	}
	return toBizUser(&m), nil
}

// UpdateUsername 修改用户名（要求当前密码哈希匹配）
func (r *userRepo) UpdateUsername(ctx context.Context, userID, hashedPassword, newUsername string) error {
	result := r.data.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ? AND password = ?", userID, hashedPassword).
		Update("username", newUsername)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("current password mismatch or user not found")
	}
	return nil
}

// UpdatePassword 修改密码（要求当前密码哈希匹配）
func (r *userRepo) UpdatePassword(ctx context.Context, userID, oldHashedPassword, newHashedPassword string) error {
	result := r.data.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ? AND password = ?", userID, oldHashedPassword).
		Update("password", newHashedPassword)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("current password mismatch or user not found")
	}
	return nil
}

func toBizUser(m *model.User) *biz.User {
	return &biz.User{
		UserID:    m.UserID,
		Username:  m.Username,
		Balance:   m.CreditBalance,
		CreatedAt: m.CreatedAt,
	}
}

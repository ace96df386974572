package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/constants"
	"github.com/Sophix-ma/Mindra/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// userBalanceRepo 余额相关数据访问
type userBalanceRepo struct {
	data *Data
	log  *log.Helper
}

// NewUserBalanceRepo 创建余额 repo（返回 biz.UserBalanceRepo 接口）
func NewUserBalanceRepo(data *Data, logger log.Logger) biz.UserBalanceRepo {
	return &userBalanceRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetBalance 读取用户余额
// 先查 Redis 缓存，未命中回源数据库；用户不存在返回 (0, nil)
func (r *userBalanceRepo) GetBalance(ctx context.Context, userID string) (float64, error) {
	if userID == "" {
		return 0, fmt.Errorf("userID is required")
	}

	balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, userID)
	if r.data.rdb != nil {
		balanceStr, err := r.data.rdb.Get(ctx, balanceKey).Result()
		if err == nil {
			var balance float64
			if _, err := fmt.Sscanf(balanceStr, "%f", &balance); err == nil {
				return balance, nil
			}
		}
	}

	var m model.User
	if err := r.data.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在，按余额 0 处理（业务层据此判定不足）
			return 0, nil
		}
		r.log.Errorf("GetBalance failed: userID=%s, error=%v", userID, err)
		return 0, fmt.Errorf("failed to query credit balance from database: %w", err)
	}

	// 更新缓存（异步，不阻塞，设置超时避免长时间等待）
	if r.data.rdb != nil {
		balance := m.CreditBalance
		go func() {
			cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cacheCancel()
			_ = r.data.rdb.Set(cacheCtx, balanceKey, fmt.Sprintf("%.4f", balance), 5*time.Minute).Err()
		}()
	}

	return m.CreditBalance, nil
}

// Debit 钳位扣减余额
// 单条 UPDATE 完成比较和扣减，并发扣减不会把余额打成负数；
// CASE WHEN 与原始实现的 GREATEST(credit_balance - ?, 0) 等价且跨库可用
func (r *userBalanceRepo) Debit(ctx context.Context, userID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative")
	}

	result := r.data.db.WithContext(ctx).Model(&model.User{}).
		Where("user_id = ?", userID).
		Update("credit_balance",
			gorm.Expr("CASE WHEN credit_balance > ? THEN credit_balance - ? ELSE 0 END", amount, amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// MySQL 默认只统计值发生变化的行：余额已为 0 的重复扣减同样报 0 行，
		// 需要回查区分"用户不存在"和"值未变化"
		var count int64
		if err := r.data.db.WithContext(ctx).Model(&model.User{}).
			Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("user not found: %s", userID)
		}
	}

	// 扣减成功后让缓存失效，下次读取回源（设置超时避免阻塞）
	if r.data.rdb != nil {
		balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, userID)
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cacheCancel()
		if err := r.data.rdb.Del(cacheCtx, balanceKey).Err(); err != nil {
			r.log.Warnf("failed to invalidate balance cache after debit: %v", err)
		}
	}

	return nil
}

package biz

import (
	"context"
	"time"

	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/constants"
	"github.com/Sophix-ma/Mindra/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// 低余额告警门槛缺省值，配置未给出时使用
const defaultBalanceLowThreshold = 1.0

// UserBalanceRepo 余额数据层接口（定义在 biz 层）
type UserBalanceRepo interface {
	// GetBalance 读取余额，用户不存在时返回 (0, nil)
	GetBalance(ctx context.Context, userID string) (float64, error)
	// Debit 单语句钳位扣减，余额不会变为负数
	Debit(ctx context.Context, userID string, amount float64) error
}

// UserBalanceUseCase 余额业务逻辑
// 对外只暴露查询、闸门检查和钳位扣减，失败不抛出只返回布尔
type UserBalanceUseCase struct {
	repo    UserBalanceRepo
	log     *log.Helper
	metrics *metrics.MeteringMetrics

	balanceLowThreshold float64
}

// NewUserBalanceUseCase 创建余额 UseCase
func NewUserBalanceUseCase(repo UserBalanceRepo, c *conf.Bootstrap, logger log.Logger) *UserBalanceUseCase {
	threshold := defaultBalanceLowThreshold
	if c != nil && c.Billing != nil && c.Billing.BalanceLowThreshold > 0 {
		threshold = c.Billing.BalanceLowThreshold
	}
	return &UserBalanceUseCase{
		repo:                repo,
		log:                 log.NewHelper(logger),
		metrics:             metrics.GetMetrics(),
		balanceLowThreshold: threshold,
	}
}

// GetBalance 读取余额，读取失败按 0 处理（调用方据此判定余额不足）
func (uc *UserBalanceUseCase) GetBalance(ctx context.Context, userID string) float64 {
	balance, err := uc.repo.GetBalance(ctx, userID)
	if err != nil {
		uc.log.Errorf("GetBalance failed: userID=%s, error=%v", userID, err)
		return 0
	}
	return balance
}

// CheckBalance 余额闸门：余额可读且不低于门槛时放行
// 存储不可达按不足处理（fail-closed）
func (uc *UserBalanceUseCase) CheckBalance(ctx context.Context, userID string, minThreshold float64) bool {
	start := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.GateCheckDuration.Observe(time.Since(start).Seconds())
		}
	}()

	balance, err := uc.repo.GetBalance(ctx, userID)
	if err != nil {
		uc.log.Warnf("CheckBalance failed, treating as insufficient: userID=%s, error=%v", userID, err)
		if uc.metrics != nil {
			uc.metrics.GateCheckTotal.WithLabelValues(constants.GateResultError).Inc()
		}
		return false
	}

	if uc.metrics != nil {
		if balance < uc.balanceLowThreshold {
			uc.metrics.BalanceLowAlert.Set(1)
		} else {
			uc.metrics.BalanceLowAlert.Set(0)
		}
	}

	if balance >= minThreshold {
		if uc.metrics != nil {
			uc.metrics.GateCheckTotal.WithLabelValues(constants.GateResultAllowed).Inc()
		}
		return true
	}

	if uc.metrics != nil {
		uc.metrics.GateCheckTotal.WithLabelValues(constants.GateResultBlocked).Inc()
	}
	return false
}

// Debit 钳位扣减余额，返回是否成功
// 失败只记日志，本次消费对余额而言视为免单（不重试、不回滚流水）
func (uc *UserBalanceUseCase) Debit(ctx context.Context, userID string, amount float64) bool {
	if err := uc.repo.Debit(ctx, userID, amount); err != nil {
		uc.log.Errorf("Debit failed: userID=%s, amount=%.4f, error=%v", userID, amount, err)
		if uc.metrics != nil {
			uc.metrics.DebitFailedTotal.Inc()
		}
		return false
	}
	return true
}

package biz

import (
	"context"
	"time"

	"github.com/Sophix-ma/Mindra/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// UsageRecord 用量流水（一经写入不再修改）
type UsageRecord struct {
	UserID       string
	Assignment   string
	InputTokens  int
	OutputTokens int
	CreditUsage  float64
	CreatedAt    time.Time
}

// AssignmentRollup 按分类汇总的用量
type AssignmentRollup struct {
	Assignment   string
	Records      int
	InputTokens  int
	OutputTokens int
	CreditUsage  float64
}

// UsageLedgerRepo 流水数据层接口（定义在 biz 层）
type UsageLedgerRepo interface {
	// Append 追加一条流水，文件不存在时先建表头
	Append(ctx context.Context, record *UsageRecord) error
	// History 按用户读取全部流水，创建时间倒序
	History(ctx context.Context, userID string) ([]*UsageRecord, error)
	// Purge 删除该用户全部流水，其他用户的行保持不变
	Purge(ctx context.Context, userID string) error
	// RollupSince 统计某时刻之后所有用户的流水，按分类聚合
	RollupSince(ctx context.Context, since time.Time) ([]*AssignmentRollup, error)
}

// UsageLedgerUseCase 流水业务逻辑
type UsageLedgerUseCase struct {
	repo    UsageLedgerRepo
	log     *log.Helper
	metrics *metrics.MeteringMetrics
}

// NewUsageLedgerUseCase 创建流水 UseCase
func NewUsageLedgerUseCase(repo UsageLedgerRepo, logger log.Logger) *UsageLedgerUseCase {
	return &UsageLedgerUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Append 记一条流水，返回是否成功
// 落盘失败只记日志，不阻塞也不回滚余额扣减（流水是历史视图，余额才是权威）
func (uc *UsageLedgerUseCase) Append(ctx context.Context, record *UsageRecord) bool {
	if err := uc.repo.Append(ctx, record); err != nil {
		uc.log.Errorf("Append usage record failed: userID=%s, error=%v", record.UserID, err)
		if uc.metrics != nil {
			uc.metrics.LedgerAppendFailedTotal.Inc()
		}
		return false
	}
	return true
}

// History 查询用户流水（倒序）
func (uc *UsageLedgerUseCase) History(ctx context.Context, userID string) ([]*UsageRecord, error) {
	return uc.repo.History(ctx, userID)
}

// Purge 清空用户流水
func (uc *UsageLedgerUseCase) Purge(ctx context.Context, userID string) error {
	return uc.repo.Purge(ctx, userID)
}

// RollupSince 汇总某时刻之后的全量用量，按分类聚合
func (uc *UsageLedgerUseCase) RollupSince(ctx context.Context, since time.Time) ([]*AssignmentRollup, error) {
	return uc.repo.RollupSince(ctx, since)
}

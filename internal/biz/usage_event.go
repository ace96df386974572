package biz

import (
	"context"
	"time"

	"github.com/Sophix-ma/Mindra/internal/constants"
)

// UsageEvent 经 RocketMQ 投递的异步用量事件
// 由其他入口（移动端、批处理）产生，落到同一份流水与余额
type UsageEvent struct {
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Assignment   string    `json:"assignment"`
	InputTokens  int       `json:"input_token_usage"`
	OutputTokens int       `json:"output_token_usage"`
	CreditUsage  float64   `json:"credit_usage"`
	CreatedAt    time.Time `json:"created_at"`
}

// ApplyUsageEvents 批量落账异步用量事件
// 与本地结算同样尽力而为：单条失败记录日志后继续，不触发整批重投
// （重投会让已落账的事件重复扣费）
func (uc *MeteringUseCase) ApplyUsageEvents(ctx context.Context, events []*UsageEvent) error {
	for _, ev := range events {
		if ev.UserID == "" || (ev.InputTokens == 0 && ev.OutputTokens == 0) {
			if uc.metrics != nil {
				uc.metrics.SettleSkippedTotal.Inc()
			}
			continue
		}

		assignment := ev.Assignment
		if assignment == "" {
			assignment = constants.AssignmentOther
		}
		cost := Round4(ev.CreditUsage)
		createdAt := ev.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		uc.ledger.Append(ctx, &UsageRecord{
			UserID:       ev.UserID,
			Assignment:   assignment,
			InputTokens:  ev.InputTokens,
			OutputTokens: ev.OutputTokens,
			CreditUsage:  cost,
			CreatedAt:    createdAt,
		})
		uc.balance.Debit(ctx, ev.UserID, cost)

		if uc.metrics != nil {
			uc.metrics.TokensTotal.WithLabelValues(assignment, "input").Add(float64(ev.InputTokens))
			uc.metrics.TokensTotal.WithLabelValues(assignment, "output").Add(float64(ev.OutputTokens))
			uc.metrics.CreditDebitAmount.WithLabelValues(assignment).Add(cost)
		}
	}
	return nil
}

package service

import (
	"context"
	"sync"
	"time"

	v1 "github.com/Sophix-ma/Mindra/api/sidebar/v1"
	"github.com/Sophix-ma/Mindra/internal/biz"
	sidebarErrors "github.com/Sophix-ma/Mindra/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// SidebarService 侧边栏接口：对话、网页总结、解释、翻译、用量与余额
type SidebarService struct {
	metering *biz.MeteringUseCase
	balance  *biz.UserBalanceUseCase
	ledger   *biz.UsageLedgerUseCase

	mu    sync.Mutex
	convs map[string]*biz.Conversation

	log *log.Helper
}

// NewSidebarService 创建 SidebarService
func NewSidebarService(
	metering *biz.MeteringUseCase,
	balance *biz.UserBalanceUseCase,
	ledger *biz.UsageLedgerUseCase,
	logger log.Logger,
) *SidebarService {
	return &SidebarService{
		metering: metering,
		balance:  balance,
		ledger:   ledger,
		convs:    make(map[string]*biz.Conversation),
		log:      log.NewHelper(logger),
	}
}

// conversation 取该用户的会话，没有则新建
func (s *SidebarService) conversation(userID string) *biz.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[userID]
	if !ok {
		conv = biz.NewConversation()
		s.convs[userID] = conv
	}
	return conv
}

// Chat 发起一次对话，事件经 channel 流式返回
func (s *SidebarService) Chat(ctx context.Context, userID string, req *v1.ChatRequest) (<-chan biz.Event, error) {
	if req.Text == "" && len(req.ImagePaths) == 0 && len(req.DocumentPaths) == 0 {
		return nil, sidebarErrors.New(400, sidebarErrors.ErrCodeEmptyRequest,
			sidebarErrors.ReasonEmptyRequest, "请求内容不能为空")
	}

	pages := make([]biz.CitedPage, 0, len(req.CitedPages))
	for _, p := range req.CitedPages {
		if p == nil {
			continue
		}
		pages = append(pages, biz.CitedPage{URL: p.Url, Content: p.Content})
	}

	return s.process(ctx, userID, biz.ChatRequest{
		UserID:        userID,
		Text:          req.Text,
		ImagePaths:    req.ImagePaths,
		DocumentPaths: req.DocumentPaths,
		CitedPages:    pages,
		DeepThinking:  req.DeepThinking,
		Search:        req.Search,
	})
}

// Summarize 总结网页内容
// 页面文本可能是整段 HTML，先归一化再截断
func (s *SidebarService) Summarize(ctx context.Context, userID string, req *v1.SummarizeRequest) (<-chan biz.Event, error) {
	return s.process(ctx, userID, biz.ChatRequest{
		UserID: userID,
		Text:   biz.BuildSummarizePrompt(req.PageText),
	})
}

// Explain 解释选中文本
func (s *SidebarService) Explain(ctx context.Context, userID string, req *v1.TextRequest) (<-chan biz.Event, error) {
	if req.Text == "" {
		return nil, sidebarErrors.New(400, sidebarErrors.ErrCodeEmptyRequest,
			sidebarErrors.ReasonEmptyRequest, "请求内容不能为空")
	}
	return s.process(ctx, userID, biz.ChatRequest{
		UserID: userID,
		Text:   biz.BuildExplainPrompt(req.Text),
	})
}

// Translate 翻译选中文本
func (s *SidebarService) Translate(ctx context.Context, userID string, req *v1.TextRequest) (<-chan biz.Event, error) {
	if req.Text == "" {
		return nil, sidebarErrors.New(400, sidebarErrors.ErrCodeEmptyRequest,
			sidebarErrors.ReasonEmptyRequest, "请求内容不能为空")
	}
	return s.process(ctx, userID, biz.ChatRequest{
		UserID: userID,
		Text:   biz.BuildTranslatePrompt(req.Text),
	})
}

func (s *SidebarService) process(ctx context.Context, userID string, req biz.ChatRequest) (<-chan biz.Event, error) {
	events, err := s.metering.Process(ctx, s.conversation(userID), req)
	if err == biz.ErrSessionBusy {
		return nil, sidebarErrors.New(429, sidebarErrors.ErrCodeSessionBusy,
			sidebarErrors.ReasonSessionBusy, "上一条消息还在处理中，请稍候")
	}
	return events, err
}

// ResetConversation 清空该用户的会话历史
func (s *SidebarService) ResetConversation(ctx context.Context, userID string) (*v1.EmptyReply, error) {
	s.conversation(userID).Reset()
	return &v1.EmptyReply{}, nil
}

// GetBalance 查询余额
func (s *SidebarService) GetBalance(ctx context.Context, userID string) (*v1.BalanceReply, error) {
	return &v1.BalanceReply{Balance: s.balance.GetBalance(ctx, userID)}, nil
}

// UsageHistory 查询用量历史，按时间倒序
func (s *SidebarService) UsageHistory(ctx context.Context, userID string) (*v1.UsageHistoryReply, error) {
	records, err := s.ledger.History(ctx, userID)
	if err != nil {
		s.log.Errorf("UsageHistory failed: userID=%s, error=%v", userID, err)
		return nil, sidebarErrors.New(500, sidebarErrors.ErrCodeLedgerReadFailed,
			sidebarErrors.ReasonLedgerReadFailed, "用量历史读取失败")
	}
	reply := &v1.UsageHistoryReply{Records: make([]*v1.UsageRecord, 0, len(records))}
	for _, r := range records {
		reply.Records = append(reply.Records, &v1.UsageRecord{
			Assignment:   r.Assignment,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			CreditUsage:  r.CreditUsage,
			CreatedAt:    r.CreatedAt.Format(time.RFC3339),
		})
	}
	return reply, nil
}

// PurgeUsage 清空该用户的全部用量历史
func (s *SidebarService) PurgeUsage(ctx context.Context, userID string) (*v1.EmptyReply, error) {
	if err := s.ledger.Purge(ctx, userID); err != nil {
		s.log.Errorf("PurgeUsage failed: userID=%s, error=%v", userID, err)
		return nil, sidebarErrors.New(500, sidebarErrors.ErrCodeLedgerPurgeFailed,
			sidebarErrors.ReasonLedgerPurgeFailed, "用量历史清空失败")
	}
	return &v1.EmptyReply{}, nil
}

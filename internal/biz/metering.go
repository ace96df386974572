package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sophix-ma/Mindra/internal/ai"
	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/constants"
	"github.com/Sophix-ma/Mindra/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrSessionBusy 同一会话已有未完成的请求
var ErrSessionBusy = errors.New("conversation has an outstanding request")

// 余额不足时的短路回复
const insufficientBalanceReply = "抱歉，您的Credit余额不足，请联系管理员充值后再使用大模型服务。"

// CitedPage 被引用的网页及其抽取内容
type CitedPage struct {
	URL     string
	Content string
}

// ChatRequest 一次 AI 请求
// 文档、图片、引用网页三者决定请求形态与路由模型
type ChatRequest struct {
	UserID        string
	Text          string
	ImagePaths    []string
	DocumentPaths []string
	CitedPages    []CitedPage
	DeepThinking  bool
	Search        bool
}

// EventKind 事件类型
type EventKind int

const (
	// EventDelta 增量更新，携带到当前为止累计的正文与思考过程
	EventDelta EventKind = iota
	// EventComplete 终态完成，携带最终正文与思考过程
	EventComplete
	// EventError 终态错误，携带可读信息
	EventError
)

// Event 投递给调用方展示层的事件
// 同一会话内按产生顺序投递，Complete 或 Error 必为最后一个
type Event struct {
	Kind      EventKind
	Content   string
	Reasoning string
	Message   string
}

// InferenceClient AI 服务商能力（流式对话 + 文件上传）
type InferenceClient interface {
	StreamChat(ctx context.Context, req ai.ChatStreamRequest) (<-chan ai.Delta, <-chan error)
	UploadFile(ctx context.Context, path, purpose string) (string, error)
}

// MeteringUseCase 计量协调器
// 串起余额闸门、流式会话、计价、流水与扣减：Idle → Gating → Streaming → Settling
type MeteringUseCase struct {
	client  InferenceClient
	pricing *PricingTable
	balance *UserBalanceUseCase
	ledger  *UsageLedgerUseCase
	models  *conf.AiModels
	log     *log.Helper
	metrics *metrics.MeteringMetrics
}

// NewMeteringUseCase 创建计量协调器
func NewMeteringUseCase(
	client InferenceClient,
	pricing *PricingTable,
	balance *UserBalanceUseCase,
	ledger *UsageLedgerUseCase,
	c *conf.Bootstrap,
	logger log.Logger,
) *MeteringUseCase {
	var models *conf.AiModels
	if c != nil && c.Ai != nil {
		models = c.Ai.Models
	}
	if models == nil {
		models = &conf.AiModels{}
	}
	return &MeteringUseCase{
		client:  client,
		pricing: pricing,
		balance: balance,
		ledger:  ledger,
		models:  models,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Process 处理一次 AI 请求
// 事件经返回的 channel 异步投递，调用方的交互线程不会被阻塞；
// 同一会话在前一请求结束前再次调用返回 ErrSessionBusy；
// 请求上下文取消后工作协程放弃后续投递并释放会话
func (uc *MeteringUseCase) Process(ctx context.Context, conv *Conversation, req ChatRequest) (<-chan Event, error) {
	if !conv.TryAcquire() {
		return nil, ErrSessionBusy
	}

	events := make(chan Event, 16)
	go func() {
		defer conv.Release()
		defer close(events)
		uc.run(ctx, conv, req, events)
	}()
	return events, nil
}

// emit 投递一个事件；消费方随请求上下文一起消失时放弃投递并返回 false
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (uc *MeteringUseCase) run(ctx context.Context, conv *Conversation, req ChatRequest, events chan<- Event) {
	// Gating
	if !uc.balance.CheckBalance(ctx, req.UserID, uc.pricing.MinBalanceThreshold()) {
		// 短路为一条正常的零用量回复，不算错误，不产生流水
		if !emit(ctx, events, Event{Kind: EventDelta, Content: insufficientBalanceReply}) {
			return
		}
		emit(ctx, events, Event{Kind: EventComplete, Content: insufficientBalanceReply})
		if uc.metrics != nil {
			uc.metrics.StreamTotal.WithLabelValues(constants.AssignmentOther, constants.StreamResultBlocked).Inc()
		}
		return
	}

	model, messages, historyMsg, err := uc.buildRequest(ctx, conv, req)
	if err != nil {
		emit(ctx, events, Event{Kind: EventError, Message: err.Error()})
		if uc.metrics != nil {
			uc.metrics.StreamTotal.WithLabelValues(uc.pricing.Assignment(model), constants.StreamResultError).Inc()
		}
		return
	}

	streamReq := ai.ChatStreamRequest{
		Model:       model,
		Messages:    messages,
		Temperature: constants.ChatTemperature,
		MaxTokens:   constants.ChatMaxTokens,
	}
	// 文档解析不支持思考增强
	if len(req.DocumentPaths) == 0 {
		streamReq.EnableThinking = req.DeepThinking
		streamReq.EnableSearch = req.Search
	}

	assignment := uc.pricing.Assignment(model)
	start := time.Now()

	// Streaming
	deltas, errs := uc.client.StreamChat(ctx, streamReq)

	var content, reasoning strings.Builder
	var usage *ai.Usage
	for d := range deltas {
		if d.Usage != nil {
			usage = d.Usage
		}
		if d.Content == "" && d.Reasoning == "" {
			continue
		}
		content.WriteString(d.Content)
		reasoning.WriteString(d.Reasoning)
		if !emit(ctx, events, Event{Kind: EventDelta, Content: content.String(), Reasoning: reasoning.String()}) {
			return
		}
	}

	select {
	case err := <-errs:
		if err != nil {
			emit(ctx, events, Event{Kind: EventError, Message: fmt.Sprintf("抱歉，流式输出失败: %v", err)})
			if uc.metrics != nil {
				uc.metrics.StreamTotal.WithLabelValues(assignment, constants.StreamResultError).Inc()
			}
			return
		}
	default:
	}

	finalContent := content.String()
	finalReasoning := reasoning.String()

	conv.AppendTurn(historyMsg, finalContent)

	// Settling
	uc.settle(ctx, req.UserID, model, assignment, usage)

	if uc.metrics != nil {
		uc.metrics.StreamTotal.WithLabelValues(assignment, constants.StreamResultCompleted).Inc()
		uc.metrics.StreamDuration.WithLabelValues(assignment).Observe(time.Since(start).Seconds())
	}

	emit(ctx, events, Event{Kind: EventComplete, Content: finalContent, Reasoning: finalReasoning})
}

// buildRequest 按请求形态构建模型与消息序列
// 返回的 historyMsg 是本轮写入会话历史的 user 条目
func (uc *MeteringUseCase) buildRequest(ctx context.Context, conv *Conversation, req ChatRequest) (model string, messages []ai.Message, historyMsg ai.Message, err error) {
	// 形态一：文档解析，先同步上传再以 fileid 伪消息引用，不带会话历史
	if len(req.DocumentPaths) > 0 {
		refs := make([]string, 0, len(req.DocumentPaths))
		for _, doc := range req.DocumentPaths {
			fileID, uploadErr := uc.client.UploadFile(ctx, doc, "file-extract")
			if uploadErr != nil {
				uc.log.Errorf("upload document failed: path=%s, error=%v", doc, uploadErr)
				return uc.models.TextParsing, nil, ai.Message{},
					fmt.Errorf("上传文档失败 %s: %v", doc, uploadErr)
			}
			refs = append(refs, "fileid://"+fileID)
		}
		messages = []ai.Message{
			ai.SystemMessage(strings.Join(refs, ",")),
			ai.UserText(req.Text),
		}
		return uc.models.TextParsing, messages, ai.UserText(req.Text), nil
	}

	// 形态二：图文消息，图片在前，文本（含引用网页正文）在后
	text := AppendCitedPages(req.Text, req.CitedPages)
	if len(req.ImagePaths) > 0 {
		parts := make([]ai.Part, 0, len(req.ImagePaths)+1)
		for _, img := range req.ImagePaths {
			part, imgErr := ai.ImagePart(img)
			if imgErr != nil {
				uc.log.Warnf("read image failed, skipping: %v", imgErr)
				continue
			}
			parts = append(parts, part)
		}
		if text != "" {
			parts = append(parts, ai.TextPart(text))
		}
		historyMsg = ai.UserParts(parts)
		model = uc.models.ImageParsing
	} else {
		historyMsg = ai.UserText(text)
		model = uc.models.DailyConversation
	}

	messages = append(conv.Snapshot(), historyMsg)
	return model, messages, historyMsg, nil
}

// settle 结算：按终态用量计价、记流水、扣余额
// 两步彼此独立、各自尽力而为；零用量的交换不计量
func (uc *MeteringUseCase) settle(ctx context.Context, userID, model, assignment string, usage *ai.Usage) {
	if usage == nil || (usage.PromptTokens == 0 && usage.CompletionTokens == 0) {
		if uc.metrics != nil {
			uc.metrics.SettleSkippedTotal.Inc()
		}
		return
	}

	cost := uc.pricing.Cost(model, usage.PromptTokens, usage.CompletionTokens)

	uc.ledger.Append(ctx, &UsageRecord{
		UserID:       userID,
		Assignment:   assignment,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		CreditUsage:  cost,
		CreatedAt:    time.Now(),
	})

	uc.balance.Debit(ctx, userID, cost)

	if uc.metrics != nil {
		uc.metrics.TokensTotal.WithLabelValues(assignment, "input").Add(float64(usage.PromptTokens))
		uc.metrics.TokensTotal.WithLabelValues(assignment, "output").Add(float64(usage.CompletionTokens))
		uc.metrics.CreditDebitAmount.WithLabelValues(assignment).Add(cost)
	}
}

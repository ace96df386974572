package biz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sophix-ma/Mindra/internal/ai"
	"github.com/Sophix-ma/Mindra/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

type fakeBalanceRepo struct {
	mu       sync.Mutex
	balances map[string]float64
	getErr   error
	debits   []float64
}

func (r *fakeBalanceRepo) GetBalance(ctx context.Context, userID string) (float64, error) {
	if r.getErr != nil {
		return 0, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

func (r *fakeBalanceRepo) Debit(ctx context.Context, userID string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debits = append(r.debits, amount)
	balance := r.balances[userID] - amount
	if balance < 0 {
		balance = 0
	}
	r.balances[userID] = balance
	return nil
}

type fakeLedgerRepo struct {
	mu      sync.Mutex
	records []*UsageRecord
}

func (r *fakeLedgerRepo) Append(ctx context.Context, record *UsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *fakeLedgerRepo) History(ctx context.Context, userID string) ([]*UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*UsageRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) Purge(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.UserID != userID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

func (r *fakeLedgerRepo) RollupSince(ctx context.Context, since time.Time) ([]*AssignmentRollup, error) {
	return nil, nil
}

type fakeClient struct {
	deltas    []ai.Delta
	streamErr error
	uploadErr error
	lastReq   ai.ChatStreamRequest
	uploaded  []string
}

func (c *fakeClient) StreamChat(ctx context.Context, req ai.ChatStreamRequest) (<-chan ai.Delta, <-chan error) {
	c.lastReq = req
	deltas := make(chan ai.Delta, len(c.deltas))
	errs := make(chan error, 1)
	for _, d := range c.deltas {
		deltas <- d
	}
	close(deltas)
	if c.streamErr != nil {
		errs <- c.streamErr
	}
	return deltas, errs
}

func (c *fakeClient) UploadFile(ctx context.Context, path, purpose string) (string, error) {
	if c.uploadErr != nil {
		return "", c.uploadErr
	}
	c.uploaded = append(c.uploaded, path)
	return fmt.Sprintf("file-%d", len(c.uploaded)), nil
}

func newTestMetering(t *testing.T, client InferenceClient, balances map[string]float64) (*MeteringUseCase, *fakeBalanceRepo, *fakeLedgerRepo) {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	balanceRepo := &fakeBalanceRepo{balances: balances}
	ledgerRepo := &fakeLedgerRepo{}
	uc := NewMeteringUseCase(
		client,
		NewPricingTable(testBootstrap()),
		NewUserBalanceUseCase(balanceRepo, testBootstrap(), logger),
		NewUsageLedgerUseCase(ledgerRepo, logger),
		testBootstrap(),
		logger,
	)
	return uc, balanceRepo, ledgerRepo
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	if len(out) == 0 {
		t.Fatal("no events received")
	}
	return out
}

func TestProcess_TextChatSettles(t *testing.T) {
	client := &fakeClient{deltas: []ai.Delta{
		{Content: "你好"},
		{Content: "，世界"},
		{Usage: &ai.Usage{PromptTokens: 1000, CompletionTokens: 500}},
	}}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	conv := NewConversation()
	events, err := uc.Process(context.Background(), conv, ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.Kind != EventComplete || last.Content != "你好，世界" {
		t.Fatalf("last event = %+v", last)
	}
	// 增量事件携带累计内容
	if got[0].Kind != EventDelta || got[0].Content != "你好" {
		t.Fatalf("first event = %+v", got[0])
	}

	// 日常对话：1.0*0.004 + 0.5*0.012 = 0.0100
	if len(ledgerRepo.records) != 1 {
		t.Fatalf("ledger records = %d, want 1", len(ledgerRepo.records))
	}
	rec := ledgerRepo.records[0]
	if rec.Assignment != constants.AssignmentDailyConversation {
		t.Fatalf("assignment = %q", rec.Assignment)
	}
	if !almostEqual(rec.CreditUsage, 0.0100) {
		t.Fatalf("credit = %v, want 0.0100", rec.CreditUsage)
	}
	if len(balanceRepo.debits) != 1 || !almostEqual(balanceRepo.debits[0], 0.0100) {
		t.Fatalf("debits = %v", balanceRepo.debits)
	}

	// 会话历史写入了本轮 user/assistant
	if conv.Len() != 3 {
		t.Fatalf("history len = %d, want 3", conv.Len())
	}
	if client.lastReq.Model != "qwen-plus" {
		t.Fatalf("model = %q", client.lastReq.Model)
	}
}

func TestProcess_InsufficientBalanceShortCircuits(t *testing.T) {
	client := &fakeClient{}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 0.0005})

	conv := NewConversation()
	events, err := uc.Process(context.Background(), conv, ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.Kind != EventComplete {
		t.Fatalf("last event kind = %v", last.Kind)
	}
	if !strings.Contains(last.Content, "Credit余额不足") {
		t.Fatalf("content = %q", last.Content)
	}
	// 不产生流水与扣减，不写会话历史
	if len(ledgerRepo.records) != 0 || len(balanceRepo.debits) != 0 {
		t.Fatalf("blocked request must not meter: records=%d debits=%d",
			len(ledgerRepo.records), len(balanceRepo.debits))
	}
	if conv.Len() != 1 {
		t.Fatalf("history len = %d, want 1", conv.Len())
	}
}

func TestProcess_GateFailClosedOnStoreError(t *testing.T) {
	client := &fakeClient{}
	uc, balanceRepo, _ := newTestMetering(t, client, map[string]float64{"u1": 100})
	balanceRepo.getErr = errors.New("store down")

	events, err := uc.Process(context.Background(), NewConversation(), ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)
	if !strings.Contains(got[len(got)-1].Content, "Credit余额不足") {
		t.Fatalf("expected insufficient-balance reply, got %+v", got[len(got)-1])
	}
}

func TestProcess_StreamErrorEmitsErrorEvent(t *testing.T) {
	client := &fakeClient{
		deltas:    []ai.Delta{{Content: "部分"}},
		streamErr: errors.New("connection reset"),
	}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	conv := NewConversation()
	events, err := uc.Process(context.Background(), conv, ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	if last.Kind != EventError {
		t.Fatalf("last event = %+v", last)
	}
	if !strings.Contains(last.Message, "抱歉，流式输出失败") {
		t.Fatalf("message = %q", last.Message)
	}
	// 出错的交换不结算、不入历史
	if len(ledgerRepo.records) != 0 || len(balanceRepo.debits) != 0 {
		t.Fatal("failed stream must not settle")
	}
	if conv.Len() != 1 {
		t.Fatalf("history len = %d, want 1", conv.Len())
	}
}

func TestProcess_ZeroUsageNotMetered(t *testing.T) {
	client := &fakeClient{deltas: []ai.Delta{
		{Content: "ok"},
		{Usage: &ai.Usage{}},
	}}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	events, err := uc.Process(context.Background(), NewConversation(), ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)
	if got[len(got)-1].Kind != EventComplete {
		t.Fatalf("last event = %+v", got[len(got)-1])
	}
	if len(ledgerRepo.records) != 0 || len(balanceRepo.debits) != 0 {
		t.Fatal("zero-usage exchange must not be metered")
	}
}

func TestProcess_FullCostRecordedEvenWhenBalanceClamps(t *testing.T) {
	// 用量成本 0.0100，余额只剩 0.004：流水记全额，余额钳位到 0
	client := &fakeClient{deltas: []ai.Delta{
		{Content: "回答"},
		{Usage: &ai.Usage{PromptTokens: 1000, CompletionTokens: 500}},
	}}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 0.004})

	events, err := uc.Process(context.Background(), NewConversation(), ChatRequest{UserID: "u1", Text: "hi"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	collect(t, events)

	if len(ledgerRepo.records) != 1 || !almostEqual(ledgerRepo.records[0].CreditUsage, 0.0100) {
		t.Fatalf("ledger must record full cost, got %+v", ledgerRepo.records)
	}
	if got := balanceRepo.balances["u1"]; got != 0 {
		t.Fatalf("balance = %v, want 0 (clamped)", got)
	}
}

func TestProcess_SessionBusy(t *testing.T) {
	client := &fakeClient{}
	uc, _, _ := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	conv := NewConversation()
	if !conv.TryAcquire() {
		t.Fatal("acquire")
	}
	defer conv.Release()

	if _, err := uc.Process(context.Background(), conv, ChatRequest{UserID: "u1", Text: "hi"}); err != ErrSessionBusy {
		t.Fatalf("err = %v, want ErrSessionBusy", err)
	}
}

func TestProcess_AbandonedConsumerReleasesConversation(t *testing.T) {
	// 增量条数远超事件缓冲，消费方一个事件也不读就断开
	deltas := make([]ai.Delta, 0, 41)
	for i := 0; i < 40; i++ {
		deltas = append(deltas, ai.Delta{Content: "块"})
	}
	deltas = append(deltas, ai.Delta{Usage: &ai.Usage{PromptTokens: 10, CompletionTokens: 10}})
	client := &fakeClient{deltas: deltas}
	uc, _, _ := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	ctx, cancel := context.WithCancel(context.Background())
	conv := NewConversation()
	if _, err := uc.Process(ctx, conv, ChatRequest{UserID: "u1", Text: "hi"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	cancel()

	// 工作协程应随上下文取消退出并归还会话
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conv.TryAcquire() {
			conv.Release()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("conversation still busy after consumer went away")
}

func TestProcess_ImageRequestRoutesToVisionModel(t *testing.T) {
	client := &fakeClient{deltas: []ai.Delta{
		{Content: "图里有一只猫"},
		{Usage: &ai.Usage{PromptTokens: 200, CompletionTokens: 50}},
	}}
	uc, _, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	events, err := uc.Process(context.Background(), NewConversation(), ChatRequest{
		UserID:     "u1",
		Text:       "图里有什么",
		ImagePaths: []string{"/nonexistent/cat.jpg"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	collect(t, events)

	if client.lastReq.Model != "qwen-vl-plus" {
		t.Fatalf("model = %q, want qwen-vl-plus", client.lastReq.Model)
	}
	if len(ledgerRepo.records) != 1 || ledgerRepo.records[0].Assignment != constants.AssignmentImageParsing {
		t.Fatalf("records = %+v", ledgerRepo.records)
	}
}

func TestProcess_DocumentRequestUploadsFirst(t *testing.T) {
	client := &fakeClient{deltas: []ai.Delta{
		{Content: "文档摘要"},
		{Usage: &ai.Usage{PromptTokens: 4000, CompletionTokens: 300}},
	}}
	uc, _, _ := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	conv := NewConversation()
	// 先积累两轮历史，文档请求不应携带
	conv.AppendTurn(ai.UserText("旧问题"), "旧回答")

	events, err := uc.Process(context.Background(), conv, ChatRequest{
		UserID:        "u1",
		Text:          "总结这份文档",
		DocumentPaths: []string{"/tmp/a.pdf", "/tmp/b.pdf"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	collect(t, events)

	if len(client.uploaded) != 2 {
		t.Fatalf("uploaded = %v", client.uploaded)
	}
	if client.lastReq.Model != "qwen-long" {
		t.Fatalf("model = %q, want qwen-long", client.lastReq.Model)
	}
	// 消息序列：fileid 伪系统消息 + 用户文本，不含会话历史
	if len(client.lastReq.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(client.lastReq.Messages))
	}
	first, _ := client.lastReq.Messages[0].Content.(string)
	if client.lastReq.Messages[0].Role != "system" || !strings.HasPrefix(first, "fileid://") {
		t.Fatalf("first message = %+v", client.lastReq.Messages[0])
	}
}

func TestProcess_DocumentUploadFailure(t *testing.T) {
	client := &fakeClient{uploadErr: errors.New("413 too large")}
	uc, _, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	events, err := uc.Process(context.Background(), NewConversation(), ChatRequest{
		UserID:        "u1",
		Text:          "总结",
		DocumentPaths: []string{"/tmp/a.pdf"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	got := collect(t, events)
	last := got[len(got)-1]
	if last.Kind != EventError || !strings.Contains(last.Message, "上传文档失败") {
		t.Fatalf("last event = %+v", last)
	}
	if len(ledgerRepo.records) != 0 {
		t.Fatal("failed upload must not meter")
	}
}

func TestApplyUsageEvents(t *testing.T) {
	client := &fakeClient{}
	uc, balanceRepo, ledgerRepo := newTestMetering(t, client, map[string]float64{"u1": 5.0})

	err := uc.ApplyUsageEvents(context.Background(), []*UsageEvent{
		{UserID: "u1", Assignment: constants.AssignmentDailyConversation, InputTokens: 100, OutputTokens: 50, CreditUsage: 0.001},
		{UserID: "", InputTokens: 100},                  // 无主事件跳过
		{UserID: "u1", InputTokens: 0, OutputTokens: 0}, // 零用量跳过
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ledgerRepo.records) != 1 {
		t.Fatalf("records = %d, want 1", len(ledgerRepo.records))
	}
	if len(balanceRepo.debits) != 1 || !almostEqual(balanceRepo.debits[0], 0.001) {
		t.Fatalf("debits = %v", balanceRepo.debits)
	}
}

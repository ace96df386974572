package biz

import (
	"sync"

	"github.com/Sophix-ma/Mindra/internal/ai"
	"github.com/Sophix-ma/Mindra/internal/constants"
)

// SystemPrompt 助手人设，作为每个会话历史的第 0 条
const SystemPrompt = `你是一个名为Mindra AI的浏览器助手。你具有以下特点和能力：

1. **身份定位**：你是集成在Mindra浏览器中的智能助手，专门帮助用户浏览网页、总结内容、翻译文本等。

2. **核心功能**：
   - 网页内容总结：帮助用户快速了解网页的核心信息和关键点
   - 文本翻译：支持多语言翻译，特别是中英文互译
   - 问题解答：回答用户关于网页内容或一般知识的问题
   - 学习辅助：帮助用户学习和理解新知识

3. **回答风格**：
   - 友好、耐心、专业
   - 回答要简洁明了，避免过于技术化的术语
   - 对于页面总结，提取关键信息，使用要点形式呈现
   - 保持积极助人的态度

4. **特殊能力**：
   - 能够理解网页上下文
   - 支持实时对话交流
   - 具备多轮对话记忆能力
   - 擅长从复杂内容中提取关键信息

请根据以上定位为用户提供最好的服务！`

// Conversation 一个会话的全部可变状态
// 历史归属于本对象，协调器之外不共享；同一会话同一时间只允许一个在途请求
type Conversation struct {
	mu       sync.Mutex
	history  []ai.Message
	inFlight bool
}

// NewConversation 创建会话，历史以系统提示词起头
func NewConversation() *Conversation {
	return &Conversation{
		history: []ai.Message{ai.SystemMessage(SystemPrompt)},
	}
}

// TryAcquire 占用会话，已有在途请求时返回 false
func (c *Conversation) TryAcquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

// Release 释放会话
func (c *Conversation) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
}

// Snapshot 返回历史副本（含系统提示词）
func (c *Conversation) Snapshot() []ai.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ai.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Len 当前历史条数
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// AppendTurn 追加一轮 user/assistant 对话并截断历史
// 超过上限时保留系统提示词加最近 18 条，旧轮次直接丢弃不做摘要
func (c *Conversation) AppendTurn(user ai.Message, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, user, ai.AssistantMessage(assistant))
	if len(c.history) > constants.HistoryMaxEntries {
		kept := make([]ai.Message, 0, constants.HistoryKeepEntries+1)
		kept = append(kept, c.history[0])
		kept = append(kept, c.history[len(c.history)-constants.HistoryKeepEntries:]...)
		c.history = kept
	}
}

// Reset 清空历史，只保留系统提示词
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []ai.Message{ai.SystemMessage(SystemPrompt)}
}

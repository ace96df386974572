// Package v1 定义侧边栏 HTTP 接口的请求/响应结构
// 本仓库不走 IDL 生成，DTO 手工维护
package v1

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	ActivationCode string `json:"activation_code"`
}

// RegisterReply 注册响应
type RegisterReply struct {
	UserId   string  `json:"user_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginReply 登录响应，令牌 7 天内有效
type LoginReply struct {
	UserId   string  `json:"user_id"`
	Username string  `json:"username"`
	Balance  float64 `json:"balance"`
	Token    string  `json:"token"`
}

// ChangeUsernameRequest 修改用户名请求
type ChangeUsernameRequest struct {
	CurrentPassword string `json:"current_password"`
	NewUsername     string `json:"new_username"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// EmptyReply 无数据响应
type EmptyReply struct{}

// BalanceReply 余额查询响应
type BalanceReply struct {
	Balance float64 `json:"balance"`
}

// UsageRecord 一条用量流水
type UsageRecord struct {
	Assignment   string  `json:"assignment"`
	InputTokens  int     `json:"input_token_usage"`
	OutputTokens int     `json:"output_token_usage"`
	CreditUsage  float64 `json:"credit_usage"`
	CreatedAt    string  `json:"created_at"`
}

// UsageHistoryReply 用量历史响应，按时间倒序
type UsageHistoryReply struct {
	Records []*UsageRecord `json:"records"`
}

// CitedPage 对话中引用的网页
type CitedPage struct {
	Url     string `json:"url"`
	Content string `json:"content"`
}

// ChatRequest 对话请求
// 文档、图片、引用网页决定请求形态
type ChatRequest struct {
	Text          string       `json:"text"`
	ImagePaths    []string     `json:"image_paths"`
	DocumentPaths []string     `json:"document_paths"`
	CitedPages    []*CitedPage `json:"cited_pages"`
	DeepThinking  bool         `json:"deep_thinking"`
	Search        bool         `json:"search"`
}

// SummarizeRequest 网页总结请求，携带页面原始文本（可能是整段 HTML）
type SummarizeRequest struct {
	PageText string `json:"page_text"`
}

// TextRequest 解释/翻译请求
type TextRequest struct {
	Text string `json:"text"`
}

// StreamEvent SSE 推送的事件体
// type 为 delta / complete / error，delta 携带到当前为止的累计内容
type StreamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
	Message   string `json:"message,omitempty"`
}

package constants

// 模型逻辑角色常量
const (
	// RoleTextParsing 文档解析（长文本抽取）
	RoleTextParsing = "text_parsing"
	// RoleImageParsing 图片理解
	RoleImageParsing = "image_parsing"
	// RoleDailyConversation 日常对话
	RoleDailyConversation = "daily_conversation"
)

// 用途分类常量（写入流水的 assignment 字段）
const (
	// AssignmentTextParsing 文本解析
	AssignmentTextParsing = "文本解析"
	// AssignmentImageParsing 图片解析
	AssignmentImageParsing = "图片解析"
	// AssignmentDailyConversation 日常对话
	AssignmentDailyConversation = "日常对话"
	// AssignmentOther 其他
	AssignmentOther = "其他"
)

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "balance:"
	// RedisKeyLedgerLock 流水文件重写锁 key 前缀
	RedisKeyLedgerLock = "ledger:lock:"
)

// LedgerHeader 流水文件表头列名（与历史数据兼容，顺序不可变）
var LedgerHeader = []string{
	"user_id",
	"assignment",
	"input_token_usage",
	"output_token_usage",
	"credit_usage",
	"created_at",
}

// 默认价格常量（千 token 单价，未配置的模型按此计费）
const (
	// DefaultInputPrice 默认输入价格
	DefaultInputPrice = 0.0005
	// DefaultOutputPrice 默认输出价格
	DefaultOutputPrice = 0.002
)

// 余额门槛常量
const (
	// DefaultMinBalanceThreshold 发起请求的默认最低余额
	DefaultMinBalanceThreshold = 0.001
)

// 对话历史常量
const (
	// HistoryMaxEntries 历史上限（含系统提示词）
	HistoryMaxEntries = 20
	// HistoryKeepEntries 截断后保留的最近条数（不含系统提示词）
	HistoryKeepEntries = 18
)

// 采样参数常量
const (
	// ChatTemperature 采样温度
	ChatTemperature = 0.7
	// ChatMaxTokens 单次回复 token 上限
	ChatMaxTokens = 2000
)

// 登录令牌常量
const (
	// TokenValidDays 登录令牌有效天数
	TokenValidDays = 7
)

// 检查结果常量（用于指标）
const (
	// GateResultAllowed 放行
	GateResultAllowed = "allowed"
	// GateResultBlocked 拦截
	GateResultBlocked = "blocked"
	// GateResultError 错误
	GateResultError = "error"
)

// 流式会话结果常量（用于指标）
const (
	// StreamResultCompleted 正常完成
	StreamResultCompleted = "completed"
	// StreamResultError 出错
	StreamResultError = "error"
	// StreamResultBlocked 余额拦截
	StreamResultBlocked = "blocked"
)

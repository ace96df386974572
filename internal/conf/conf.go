package conf

import "time"

// Bootstrap 服务启动配置
// 通过 kratos config 从 configs/config.yaml 加载
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Ai      *Ai      `json:"ai"`
	Billing *Billing `json:"billing"`
	Auth    *Auth    `json:"auth"`
	Log     *Log     `json:"log"`
}

// Server 传输层配置
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP HTTP 服务配置
type HTTP struct {
	Network string `json:"network"`
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"` // 如 "30s"
}

// TimeoutDuration 解析超时时间，解析失败返回 0
func (h *HTTP) TimeoutDuration() time.Duration {
	if h == nil || h.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Data 数据层配置
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
	Rocketmq *Rocketmq `json:"rocketmq"`
	Ledger   *Ledger   `json:"ledger"`
}

// Database MySQL 配置
type Database struct {
	Source string `json:"source"`
}

// Redis Redis 配置
type Redis struct {
	Addr         string `json:"addr"`
	Password     string `json:"password"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// ReadTimeoutDuration 解析读超时，解析失败返回 0
func (r *Redis) ReadTimeoutDuration() time.Duration {
	if r == nil {
		return 0
	}
	d, err := time.ParseDuration(r.ReadTimeout)
	if err != nil {
		return 0
	}
	return d
}

// WriteTimeoutDuration 解析写超时，解析失败返回 0
func (r *Redis) WriteTimeoutDuration() time.Duration {
	if r == nil {
		return 0
	}
	d, err := time.ParseDuration(r.WriteTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Rocketmq 用量事件消费配置（多端同账号场景，默认关闭）
type Rocketmq struct {
	Enabled     bool     `json:"enabled"`
	NameServers []string `json:"name_servers"`
	GroupName   string   `json:"group_name"`
	Topic       string   `json:"topic"`
	RetryTimes  int32    `json:"retry_times"`
}

// Ledger 用量流水 CSV 文件配置
type Ledger struct {
	Path string `json:"path"`
}

// Ai AI 服务商配置
type Ai struct {
	BaseUrl string    `json:"base_url"`
	ApiKey  string    `json:"api_key"`
	Models  *AiModels `json:"models"`
}

// AiModels 三个逻辑角色到具体模型的映射
type AiModels struct {
	TextParsing       string `json:"text_parsing"`
	ImageParsing      string `json:"image_parsing"`
	DailyConversation string `json:"daily_conversation"`
}

// Billing 计费配置
type Billing struct {
	// Prices 各逻辑角色的千 token 价格
	Prices map[string]*ModelPrice `json:"prices"`
	// MinBalanceThreshold 发起请求的最低余额门槛
	MinBalanceThreshold float64 `json:"min_balance_threshold"`
	// InitialBalance 注册赠送的初始余额
	InitialBalance float64 `json:"initial_balance"`
	// BalanceLowThreshold 余额不足告警阈值
	BalanceLowThreshold float64 `json:"balance_low_threshold"`
}

// ModelPrice 千 token 单价（输入/输出）
type ModelPrice struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Auth 登录令牌配置
type Auth struct {
	JwtSecret      string `json:"jwt_secret"`
	ActivationCode string `json:"activation_code"`
}

// Log 日志配置
type Log struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"`
	MaxAge     int    `json:"max_age"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

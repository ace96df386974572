package errors

import (
	"strconv"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// Mindra Sidebar Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Sidebar 固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   01: 账号模块
//   02: 余额模块
//   03: 会话模块
//   04: 流水模块
//   05-99: 预留扩展

// 账号模块错误码 (210100-210199)
const (
	// ErrCodeUserNotFound 用户不存在
	ErrCodeUserNotFound = 210101
	// ErrCodeWrongCredentials 用户名或密码错误
	ErrCodeWrongCredentials = 210102
	// ErrCodeUsernameTaken 用户名已被占用
	ErrCodeUsernameTaken = 210103
	// ErrCodeBadActivationCode 激活码无效
	ErrCodeBadActivationCode = 210104
	// ErrCodeTokenInvalid 登录令牌无效或已过期
	ErrCodeTokenInvalid = 210105
)

// 余额模块错误码 (210200-210299)
const (
	// ErrCodeInsufficientBalance 余额不足
	ErrCodeInsufficientBalance = 210201
	// ErrCodeBalanceQueryFailed 余额查询失败
	ErrCodeBalanceQueryFailed = 210202
)

// 会话模块错误码 (210300-210399)
const (
	// ErrCodeSessionBusy 会话存在未完成的请求
	ErrCodeSessionBusy = 210301
	// ErrCodeEmptyRequest 请求内容为空
	ErrCodeEmptyRequest = 210302
	// ErrCodeUploadFailed 文档上传失败
	ErrCodeUploadFailed = 210303
)

// 流水模块错误码 (210400-210499)
const (
	// ErrCodeLedgerReadFailed 流水读取失败
	ErrCodeLedgerReadFailed = 210401
	// ErrCodeLedgerPurgeFailed 流水清空失败
	ErrCodeLedgerPurgeFailed = 210402
)

// reason 字符串（对外可见，保持稳定）
const (
	ReasonUserNotFound        = "USER_NOT_FOUND"
	ReasonWrongCredentials    = "WRONG_CREDENTIALS"
	ReasonUsernameTaken       = "USERNAME_TAKEN"
	ReasonBadActivationCode   = "BAD_ACTIVATION_CODE"
	ReasonTokenInvalid        = "TOKEN_INVALID"
	ReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	ReasonSessionBusy         = "SESSION_BUSY"
	ReasonEmptyRequest        = "EMPTY_REQUEST"
	ReasonLedgerReadFailed    = "LEDGER_READ_FAILED"
	ReasonLedgerPurgeFailed   = "LEDGER_PURGE_FAILED"
)

// New 创建带业务错误码的 kratos error
// httpCode 使用 400/401/409/500 等常规值，code 写入 metadata 便于客户端定位
func New(httpCode int, code int, reason, message string) *kerrors.Error {
	e := kerrors.New(httpCode, reason, message)
	e.Metadata = map[string]string{"biz_code": strconv.Itoa(code)}
	return e
}

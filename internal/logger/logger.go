package logger

import (
	"io"
	"os"

	"github.com/go-kratos/kratos/v2/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config 日志配置
type Config struct {
	Level         string
	FilePath      string
	MaxSize       int  // 单个文件上限（MB）
	MaxAge        int  // 保留天数
	MaxBackups    int  // 保留份数
	Compress      bool // 历史文件是否压缩
	EnableConsole bool
}

// NewLogger 创建同时写控制台和滚动文件的 kratos logger
func NewLogger(c *Config) log.Logger {
	if c == nil {
		return log.NewStdLogger(os.Stdout)
	}

	var writers []io.Writer
	if c.EnableConsole {
		writers = append(writers, os.Stdout)
	}
	if c.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    orDefault(c.MaxSize, 100),
			MaxAge:     orDefault(c.MaxAge, 30),
			MaxBackups: orDefault(c.MaxBackups, 10),
			Compress:   c.Compress,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l := log.NewStdLogger(io.MultiWriter(writers...))

	level := log.ParseLevel(c.Level)
	return log.NewFilter(l, log.FilterLevel(level))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

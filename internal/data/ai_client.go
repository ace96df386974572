package data

import (
	"github.com/Sophix-ma/Mindra/internal/ai"
	"github.com/Sophix-ma/Mindra/internal/conf"
)

// NewAIClient 创建大模型服务客户端
func NewAIClient(c *conf.Bootstrap) *ai.Client {
	return ai.NewClient(c.Ai.BaseUrl, c.Ai.ApiKey)
}

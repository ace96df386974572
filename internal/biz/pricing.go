package biz

import (
	"math"

	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/constants"
)

// ModelPrice 千 token 单价（输入/输出）
type ModelPrice struct {
	Input  float64
	Output float64
}

// PricingTable 模型价格表
// 按具体模型名查价与查用途分类，进程内只读
type PricingTable struct {
	prices      map[string]ModelPrice
	assignments map[string]string
	minBalance  float64
}

// 各逻辑角色的出厂价格（未配置时使用）
var defaultRolePrices = map[string]ModelPrice{
	constants.RoleTextParsing:       {Input: 0.0005, Output: 0.002},
	constants.RoleImageParsing:      {Input: 0.002, Output: 0.02},
	constants.RoleDailyConversation: {Input: 0.004, Output: 0.012},
}

var roleAssignments = map[string]string{
	constants.RoleTextParsing:       constants.AssignmentTextParsing,
	constants.RoleImageParsing:      constants.AssignmentImageParsing,
	constants.RoleDailyConversation: constants.AssignmentDailyConversation,
}

// NewPricingTable 从配置创建价格表
// 配置按逻辑角色给价，这里换算成按具体模型名索引，价格在记账时已固化到流水
func NewPricingTable(c *conf.Bootstrap) *PricingTable {
	t := &PricingTable{
		prices:      make(map[string]ModelPrice),
		assignments: make(map[string]string),
		minBalance:  constants.DefaultMinBalanceThreshold,
	}

	var models *conf.AiModels
	if c != nil && c.Ai != nil {
		models = c.Ai.Models
	}
	if models == nil {
		return t
	}

	roleModels := map[string]string{
		constants.RoleTextParsing:       models.TextParsing,
		constants.RoleImageParsing:      models.ImageParsing,
		constants.RoleDailyConversation: models.DailyConversation,
	}

	for role, model := range roleModels {
		if model == "" {
			continue
		}
		price := defaultRolePrices[role]
		if c.Billing != nil {
			if p, ok := c.Billing.Prices[role]; ok && p != nil {
				price = ModelPrice{Input: p.Input, Output: p.Output}
			}
		}
		t.prices[model] = price
		t.assignments[model] = roleAssignments[role]
	}

	if c.Billing != nil && c.Billing.MinBalanceThreshold > 0 {
		t.minBalance = c.Billing.MinBalanceThreshold
	}

	return t
}

// Cost 计算一次调用的 credit 消耗
// 未知模型按默认价格计费，结果四舍五入到 4 位小数
func (t *PricingTable) Cost(model string, inputTokens, outputTokens int) float64 {
	price, ok := t.prices[model]
	if !ok {
		price = ModelPrice{Input: constants.DefaultInputPrice, Output: constants.DefaultOutputPrice}
	}
	credit := float64(inputTokens)/1000*price.Input + float64(outputTokens)/1000*price.Output
	return Round4(credit)
}

// Assignment 返回模型对应的用途分类，未知模型归入"其他"
func (t *PricingTable) Assignment(model string) string {
	if a, ok := t.assignments[model]; ok {
		return a
	}
	return constants.AssignmentOther
}

// MinBalanceThreshold 发起请求的最低余额门槛
func (t *PricingTable) MinBalanceThreshold() float64 {
	return t.minBalance
}

// Round4 四舍五入到 4 位小数（credit 的存储精度）
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

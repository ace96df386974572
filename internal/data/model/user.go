package model

import (
	"time"
)

// User 用户账号表（含 credit 余额）
type User struct {
	UserID        string    `gorm:"primaryKey;type:varchar(36)"`
	Username      string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Password      string    `gorm:"type:char(64);not null"` // sha256 hex
	CreditBalance float64   `gorm:"type:decimal(10,4);default:0.0000"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

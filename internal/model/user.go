package model

import (
	"time"
)

// User 用户账户表
// 记录登录凭证和이용권（生成额度）余额，是整个系统的核心数据
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"type:varchar(128);not null" json:"-"`
	Name         string    `gorm:"type:varchar(64);not null" json:"name"`   // 展示用昵称
	Credits      int64     `gorm:"not null;default:0" json:"credits"`       // 可用이용권数量，永不为负
	Version      int       `gorm:"not null;default:0" json:"version"`       // 乐观锁版本号
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

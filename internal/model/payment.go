package model

import (
	"time"
)

// Payment 支付确认记录表
//
// 【关键点】幂等保障：PaymentKey 带唯一索引。
// 旧版把已处理的 paymentKey 存在会话内存里，页面刷新后会重复到账；
// 落库后同一个 paymentKey 无论回调多少次都只会入账一次
type Payment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentKey string    `gorm:"type:varchar(200);uniqueIndex;not null" json:"payment_key"` // 网关侧幂等令牌
	OrderNo    string    `gorm:"type:varchar(64);index;not null" json:"order_no"`
	Username   string    `gorm:"type:varchar(64);index;not null" json:"username"`
	Amount     int64     `gorm:"not null" json:"amount"`  // 实付金额（원）
	Credits    int64     `gorm:"not null" json:"credits"` // 本次到账이용권，价目表外的金额为 0
	Status     string    `gorm:"type:varchar(20);not null" json:"status"` // 网关返回的状态（DONE 等）
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Payment) TableName() string {
	return "payment"
}

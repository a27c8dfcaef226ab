package model

import (
	"time"
)

const (
	OrderStatusCreated = "CREATED" // 已创建，等待支付回调
	OrderStatusDone    = "DONE"    // 支付确认完成
	OrderStatusFailed  = "FAILED"  // 网关确认失败
	OrderStatusExpired = "EXPIRED" // 超时未支付，被后台任务关闭
)

var ValidStatusTransitions = map[string][]string{
	OrderStatusCreated: {OrderStatusDone, OrderStatusFailed, OrderStatusExpired},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ChargeOrder 充值订单表
// 结账时由服务端落库，支付回调只信任这里记录的金额，不信任跳转参数
type ChargeOrder struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	Username  string     `gorm:"type:varchar(64);index;not null" json:"username"`
	Amount    int64      `gorm:"not null" json:"amount"`  // 支付金额（원）
	Credits   int64      `gorm:"not null" json:"credits"` // 到账이용권数量
	Status    string     `gorm:"type:varchar(20);index;not null" json:"status"`
	ExpiredAt time.Time  `gorm:"not null" json:"expired_at"`
	PaidAt    *time.Time `json:"paid_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChargeOrder) TableName() string {
	return "charge_order"
}

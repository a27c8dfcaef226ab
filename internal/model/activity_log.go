package model

import (
	"time"
)

// ============================================================================
// 活动类型常量
// ============================================================================
//
// 与历史数据保持一致，活动类型沿用韩文业务名

const (
	ActionGenerate  = "문제생성" // 付费生成学习지
	ActionDailyFree = "무료생성" // 每日免费生成
	ActionPayment   = "결제완료" // 充值到账
)

// MarkerDailyFree 免费额度标记，写在 Extra1 列，按 KST 自然日判定是否已领取
const MarkerDailyFree = "DAILY_FREE"

const (
	LicensePersonal   = "PERSONAL"
	LicenseCommercial = "COMMERCIAL"
)

// ============================================================================
// 活动日志实体
// ============================================================================

// ActivityLog 活动日志表
// 既是审计流水，也是用户文档保관함的唯一索引（没有单独的归档表）
//
// 【重要】日志表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. FileRef 引用 S3 对象键，文件字节永不入库
// 3. 余额变动必须与日志一一对应 —— 便于对账
type ActivityLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username   string    `gorm:"type:varchar(64);index;not null" json:"username"`
	ActionType string    `gorm:"type:varchar(32);not null" json:"action_type"` // 문제생성 / 무료생성 / 결제완료
	Detail     string    `gorm:"type:varchar(256)" json:"detail"`              // 单元名或充值金额
	Extra1     string    `gorm:"type:varchar(64)" json:"extra1"`               // DAILY_FREE 标记 / 충전
	Extra2     string    `gorm:"type:varchar(64)" json:"extra2"`               // 题目数 / 충전数量
	Extra3     string    `gorm:"type:varchar(64)" json:"extra3"`               // 扣减明细（-N장 (LICENSE)）
	FileRef    string    `gorm:"type:varchar(128)" json:"file_ref"`            // 生成文档的存储键，可为空
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

package repository

import (
	"context"
	"time"

	"geniemath/internal/model"

	"gorm.io/gorm"
)

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Append 追加一条活动日志
// 日志表只追加不修改，余额变动与日志一一对应
func (r *LogRepository) Append(ctx context.Context, tx *gorm.DB, entry *model.ActivityLog) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

// ListByUsername 按时间正序取出某个用户的全部日志
// 보관함需要按时间顺序给重复主题编号，所以这里保持正序，由调用方反转展示
func (r *LogRepository) ListByUsername(ctx context.Context, username string) ([]*model.ActivityLog, error) {
	var entries []*model.ActivityLog
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// HasDailyFreeBetween 判断用户在 [from, to) 内是否已领取过免费额度
// 依旧通过日志判定而不是单独的计数表，created_at 有索引，范围查询即可
func (r *LogRepository) HasDailyFreeBetween(ctx context.Context, username string, from, to time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ActivityLog{}).
		Where("username = ? AND extra1 = ? AND created_at >= ? AND created_at < ?",
			username, model.MarkerDailyFree, from, to).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

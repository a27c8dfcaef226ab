package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"geniemath/internal/config"
	"geniemath/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库
// cache=shared 让 gorm 连接池里的多个连接看到同一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ActivityLog{},
		&model.ChargeOrder{},
		&model.Payment{},
		&model.OutboxMessage{},
	))
	return db
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Kafka.Topic.WorksheetGenerated = "worksheet.generated"
	cfg.Kafka.Topic.PaymentCompleted = "payment.completed"
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTLHours = 1
	cfg.Business.SignupBonus = 5
	cfg.Business.DailyFreeCount = 4
	cfg.Business.OrderTimeoutMinutes = 30
	cfg.Business.MaxRetryCount = 3
	return cfg
}

func createTestUser(t *testing.T, db *gorm.DB, username string, credits int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.User{
		Username:     username,
		PasswordHash: "x",
		Name:         "테스터",
		Credits:      credits,
	}).Error)
}

func userCredits(t *testing.T, db *gorm.DB, username string) int64 {
	t.Helper()
	var user model.User
	require.NoError(t, db.Where("username = ?", username).First(&user).Error)
	return user.Credits
}

func userLogs(t *testing.T, db *gorm.DB, username string) []*model.ActivityLog {
	t.Helper()
	var entries []*model.ActivityLog
	require.NoError(t, db.Where("username = ?", username).
		Order("created_at ASC").Find(&entries).Error)
	return entries
}

func countOutbox(t *testing.T, db *gorm.DB, topic string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).
		Where("topic = ?", topic).Count(&count).Error)
	return count
}

var testCtx = context.Background()

package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"geniemath/internal/model"
	"geniemath/internal/repository"
	"geniemath/internal/worksheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel 固定返回 4 道题的生成模型
type stubModel struct {
	configured bool
}

func (m stubModel) Configured() bool { return m.configured }

func (m stubModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	var chunks []string
	for i := 1; i <= 4; i++ {
		chunks = append(chunks, fmt.Sprintf("문제 %d:\n%d + %d 를 계산하시오.\n정답: %d", i, i, i, i+i))
	}
	return strings.Join(chunks, "\n@@@\n"), nil
}

// memBlob 内存对象存储
type memBlob struct {
	objects map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte)}
}

func (b *memBlob) Upload(ctx context.Context, key string, data []byte) (string, error) {
	b.objects[key] = data
	return key, nil
}

func (b *memBlob) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

func TestGenerateChargesAndLogs(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	blob := newMemBlob()
	svc := NewWorksheetService(db, newTestRedis(t), cfg,
		worksheet.NewGenerator(stubModel{configured: true}), blob)

	createTestUser(t, db, "hong", 5)

	result, err := svc.Generate(testCtx, "hong", &worksheet.Request{
		School: "중등", Grade: "2", Topic: "일차함수", Difficulty: "중", Count: 4,
	})
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Equal(t, int64(1), result.Cost)
	assert.NotEmpty(t, result.Data)
	assert.NotEmpty(t, result.FileRef)
	assert.Contains(t, blob.objects, result.FileRef)

	assert.Equal(t, int64(4), userCredits(t, db, "hong"))

	logs := userLogs(t, db, "hong")
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionGenerate, logs[0].ActionType)
	assert.Equal(t, "중등 2학년 - 일차함수", logs[0].Detail)
	assert.Equal(t, "-1장 (PERSONAL)", logs[0].Extra3)
	assert.Equal(t, result.FileRef, logs[0].FileRef)

	assert.Equal(t, int64(1), countOutbox(t, db, cfg.Kafka.Topic.WorksheetGenerated))
}

func TestGenerateCommercialCost(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	svc := NewWorksheetService(db, newTestRedis(t), cfg,
		worksheet.NewGenerator(stubModel{configured: true}), newMemBlob())

	createTestUser(t, db, "hong", 10)

	result, err := svc.Generate(testCtx, "hong", &worksheet.Request{
		School: "중등", Grade: "2", Topic: "일차함수", Difficulty: "중", Count: 4, Commercial: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), result.Cost)
	assert.Equal(t, int64(2), userCredits(t, db, "hong"))

	logs := userLogs(t, db, "hong")
	require.Len(t, logs, 1)
	assert.Equal(t, "-8장 (COMMERCIAL)", logs[0].Extra3)
}

func TestGenerateInsufficientCredits(t *testing.T) {
	db := newTestDB(t)
	svc := NewWorksheetService(db, newTestRedis(t), newTestConfig(),
		worksheet.NewGenerator(stubModel{configured: true}), newMemBlob())

	createTestUser(t, db, "hong", 5)

	// 商用 4 题要 8 张，余额只有 5
	_, err := svc.Generate(testCtx, "hong", &worksheet.Request{
		School: "중등", Grade: "2", Topic: "일차함수", Difficulty: "중", Count: 4, Commercial: true,
	})
	assert.ErrorIs(t, err, repository.ErrCreditNotEnough)

	// 没扣费也没记日志
	assert.Equal(t, int64(5), userCredits(t, db, "hong"))
	assert.Empty(t, userLogs(t, db, "hong"))
}

func TestGenerateFailedDocumentNotBilled(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	blob := newMemBlob()
	// 模型未配置 → 产出错误说明文档
	svc := NewWorksheetService(db, newTestRedis(t), cfg,
		worksheet.NewGenerator(stubModel{configured: false}), blob)

	createTestUser(t, db, "hong", 5)

	result, err := svc.Generate(testCtx, "hong", &worksheet.Request{
		School: "중등", Grade: "2", Topic: "일차함수", Difficulty: "중", Count: 4,
	})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.NotEmpty(t, result.Data)

	// 错误文档：不扣费、不上传、不记日志
	assert.Equal(t, int64(5), userCredits(t, db, "hong"))
	assert.Empty(t, userLogs(t, db, "hong"))
	assert.Empty(t, blob.objects)
	assert.Equal(t, int64(0), countOutbox(t, db, cfg.Kafka.Topic.WorksheetGenerated))
}

func TestGenerateUploadFailureTolerated(t *testing.T) {
	db := newTestDB(t)
	svc := NewWorksheetService(db, newTestRedis(t), newTestConfig(),
		worksheet.NewGenerator(stubModel{configured: true}), failingBlob{})

	createTestUser(t, db, "hong", 5)

	result, err := svc.Generate(testCtx, "hong", &worksheet.Request{
		School: "중등", Grade: "2", Topic: "일차함수", Difficulty: "중", Count: 4,
	})
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Empty(t, result.FileRef)

	// 照常扣费记日志，只是这条记录没有文件
	assert.Equal(t, int64(4), userCredits(t, db, "hong"))
	logs := userLogs(t, db, "hong")
	require.Len(t, logs, 1)
	assert.Empty(t, logs[0].FileRef)
}

func TestDailyFreeOncePerDay(t *testing.T) {
	db := newTestDB(t)
	svc := NewWorksheetService(db, newTestRedis(t), newTestConfig(),
		worksheet.NewGenerator(stubModel{configured: true}), newMemBlob())

	createTestUser(t, db, "hong", 5)

	result, err := svc.DailyFree(testCtx, "hong", "초등", "3", "분수")
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Contains(t, result.FileName, "무료")

	// 免费生成不扣费
	assert.Equal(t, int64(5), userCredits(t, db, "hong"))

	logs := userLogs(t, db, "hong")
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionDailyFree, logs[0].ActionType)
	assert.Equal(t, model.MarkerDailyFree, logs[0].Extra1)
	assert.Equal(t, "0장", logs[0].Extra3)

	// 当天第二次被拒
	_, err = svc.DailyFree(testCtx, "hong", "초등", "3", "분수")
	assert.ErrorIs(t, err, ErrDailyFreeUsed)
	assert.Len(t, userLogs(t, db, "hong"), 1)
}

// racingModel 在模型调用期间模拟并发请求先把当天额度领走
type racingModel struct {
	svc *WorksheetService
}

func (m racingModel) Configured() bool { return true }

func (m racingModel) GenerateContent(ctx context.Context, prompt string) (string, error) {
	// 另一个标签页的请求在这段时间内完成了领取
	if _, err := m.svc.DailyFree(ctx, "hong", "초등", "3", "분수"); err != nil {
		return "", err
	}
	return stubModel{configured: true}.GenerateContent(ctx, prompt)
}

func TestDailyFreeDuplicateRefusedUnderRace(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	rdb := newTestRedis(t)
	blob := newMemBlob()

	// rival 代表先完成的那个请求
	rival := NewWorksheetService(db, rdb, cfg,
		worksheet.NewGenerator(stubModel{configured: true}), blob)
	svc := NewWorksheetService(db, rdb, cfg,
		worksheet.NewGenerator(racingModel{svc: rival}), blob)

	createTestUser(t, db, "hong", 5)

	// 两个请求都通过入口检查，后完成的必须在锁内被拦下
	_, err := svc.DailyFree(testCtx, "hong", "초등", "3", "분수")
	assert.ErrorIs(t, err, ErrDailyFreeUsed)

	// 只有先完成的请求留下 DAILY_FREE 日志
	logs := userLogs(t, db, "hong")
	require.Len(t, logs, 1)
	assert.Equal(t, model.MarkerDailyFree, logs[0].Extra1)
}

func TestDailyFreeFailedDocumentKeepsQuota(t *testing.T) {
	db := newTestDB(t)
	svc := NewWorksheetService(db, newTestRedis(t), newTestConfig(),
		worksheet.NewGenerator(stubModel{configured: false}), newMemBlob())

	createTestUser(t, db, "hong", 5)

	result, err := svc.DailyFree(testCtx, "hong", "초등", "3", "분수")
	require.NoError(t, err)
	assert.True(t, result.Failed)

	// 没记日志 → 当天额度没被消耗，修好配置还能再领
	assert.Empty(t, userLogs(t, db, "hong"))
}

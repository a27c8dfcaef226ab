package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"geniemath/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logAt(action, detail, fileRef string, at time.Time) *model.ActivityLog {
	return &model.ActivityLog{
		Username:   "hong",
		ActionType: action,
		Detail:     detail,
		FileRef:    fileRef,
		CreatedAt:  at,
	}
}

func TestBuildHistoryNumbersRepeatedTopics(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, KST)
	entries := []*model.ActivityLog{
		logAt(model.ActionGenerate, "중등 2학년 - 일차함수", "k1", base),
		logAt(model.ActionGenerate, "중등 2학년 - 일차함수", "k2", base.Add(time.Hour)),
		logAt(model.ActionGenerate, "중등 2학년 - 일차함수", "k3", base.Add(2*time.Hour)),
	}

	history := BuildHistory(entries)
	require.Len(t, history, 3)

	// 编号按时间顺序，展示时最新在前
	assert.Equal(t, "중등 2학년 - 일차함수 (3)", history[0].Desc)
	assert.Equal(t, "k3", history[0].FileRef)
	assert.Equal(t, "중등 2학년 - 일차함수 (2)", history[1].Desc)
	assert.Equal(t, "중등 2학년 - 일차함수 (1)", history[2].Desc)
	assert.Equal(t, "k1", history[2].FileRef)
}

func TestBuildHistorySkipsEntriesWithoutFile(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, KST)
	entries := []*model.ActivityLog{
		logAt(model.ActionGenerate, "고등 1학년 - 이차방정식", "k1", base),
		// 充值日志没有文件，보관함里不出现
		logAt(model.ActionPayment, "1000원", "", base.Add(time.Hour)),
		// 上传失败的生成记录也没有文件
		logAt(model.ActionGenerate, "고등 1학년 - 이차방정식", "", base.Add(2*time.Hour)),
	}

	history := BuildHistory(entries)
	require.Len(t, history, 1)
	assert.Equal(t, "고등 1학년 - 이차방정식 (1)", history[0].Desc)
}

func TestBuildHistoryDailyFreeLabel(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, KST)
	entries := []*model.ActivityLog{
		logAt(model.ActionDailyFree, "초등 3학년 - 분수", "k1", base),
	}

	history := BuildHistory(entries)
	require.Len(t, history, 1)
	assert.Equal(t, "무료생성 초등 3학년 - 분수 (1)", history[0].Desc)
	assert.Equal(t, "03.01 10:00", history[0].Date)
}

func TestBuildHistoryEmpty(t *testing.T) {
	assert.Empty(t, BuildHistory(nil))
}

// failingBlob 所有操作都失败的存储实现
type failingBlob struct{}

func (failingBlob) Upload(ctx context.Context, key string, data []byte) (string, error) {
	return "", errors.New("storage down")
}

func (failingBlob) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("storage down")
}

func TestDownloadUnavailableFile(t *testing.T) {
	svc := NewArchiveService(newTestDB(t), failingBlob{})

	assert.Nil(t, svc.Download(testCtx, ""))
	assert.Nil(t, svc.Download(testCtx, "worksheets/2026/03/01/x.docx"))
}

package service

import (
	"context"
	"fmt"
	"log"

	"geniemath/internal/model"
	"geniemath/internal/repository"

	"gorm.io/gorm"
)

// HistoryEntry 보관함里的一行
type HistoryEntry struct {
	Date    string `json:"date"`
	Desc    string `json:"desc"`
	FileRef string `json:"file_ref"`
}

type ArchiveService struct {
	logRepo   *repository.LogRepository
	blobStore BlobStorage
}

func NewArchiveService(db *gorm.DB, blobStore BlobStorage) *ArchiveService {
	return &ArchiveService{
		logRepo:   repository.NewLogRepository(db),
		blobStore: blobStore,
	}
}

// ListHistory 从活动日志重建用户的文档보관함
func (s *ArchiveService) ListHistory(ctx context.Context, username string) ([]HistoryEntry, error) {
	entries, err := s.logRepo.ListByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("读取日志失败: %w", err)
	}
	return BuildHistory(entries), nil
}

// BuildHistory 日志 → 보관함条目
//
// 只保留带文件引用的行；同一主题重复生成时按时间顺序编号
// （最早的是 (1)），展示时最新的排在最前面
func BuildHistory(entries []*model.ActivityLog) []HistoryEntry {
	topicCounts := make(map[string]int)
	var history []HistoryEntry

	for _, entry := range entries {
		if entry.FileRef == "" {
			continue
		}

		var base string
		if entry.ActionType == model.ActionGenerate {
			base = entry.Detail
		} else {
			base = entry.ActionType + " " + entry.Detail
		}

		topicCounts[base]++
		history = append(history, HistoryEntry{
			Date:    formatKorDate(entry.CreatedAt),
			Desc:    fmt.Sprintf("%s (%d)", base, topicCounts[base]),
			FileRef: entry.FileRef,
		})
	}

	// 反转成最新在前
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history
}

// Download 按对象键取回文档字节
// 取不到时返回空字节而不是错误，由展示层当作"文件不可用"处理
func (s *ArchiveService) Download(ctx context.Context, fileRef string) []byte {
	if fileRef == "" {
		return nil
	}
	data, err := s.blobStore.Download(ctx, fileRef)
	if err != nil {
		log.Printf("[Archive] 下载文档失败: ref=%s, err=%v", fileRef, err)
		return nil
	}
	return data
}

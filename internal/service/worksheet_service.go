package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"geniemath/internal/config"
	"geniemath/internal/infrastructure/lock"
	"geniemath/internal/infrastructure/storage"
	"geniemath/internal/model"
	"geniemath/internal/repository"
	"geniemath/internal/worksheet"
	"geniemath/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrDailyFreeUsed = errors.New("오늘의 무료 학습지는 이미 받았습니다")
)

// BlobStorage 文档对象存储的抽象，测试时用内存实现替换
type BlobStorage interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

type WorksheetService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	generator   *worksheet.Generator
	blobStore   BlobStorage
	userRepo    *repository.UserRepository
	logRepo     *repository.LogRepository
	outboxRepo  *repository.OutboxRepository
}

func NewWorksheetService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config,
	generator *worksheet.Generator, blobStore BlobStorage) *WorksheetService {
	return &WorksheetService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		generator:   generator,
		blobStore:   blobStore,
		userRepo:    repository.NewUserRepository(db),
		logRepo:     repository.NewLogRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// GenerateResult 交给 handler 的生成结果
type GenerateResult struct {
	Data     []byte
	FileName string
	Failed   bool   // true 时 Data 是错误说明文档，未计费
	Cost     int64  // 实际扣减的이용권
	FileRef  string // 上传成功时的对象键
}

// Generate 付费生成学习지
//
// 流程：余额预检 → 产出文档 → 加锁扣费+记日志（同一事务）→ 上传归档。
// 产出的是错误说明文档时直接返回，不扣费、不上传、不记日志
func (s *WorksheetService) Generate(ctx context.Context, username string, req *worksheet.Request) (*GenerateResult, error) {
	cost := Cost(req.Count, req.Commercial)

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	if user.Credits < cost {
		return nil, repository.ErrCreditNotEnough
	}

	result := s.generator.Generate(ctx, req)
	if result.Failed {
		return &GenerateResult{
			Data:     result.Data,
			FileName: worksheet.FileName(req, false),
			Failed:   true,
		}, nil
	}

	// 上传失败不阻断流程，只是보관함里这条记录没有文件
	fileRef := s.upload(ctx, result.Data)

	license := model.LicensePersonal
	if req.Commercial {
		license = model.LicenseCommercial
	}
	label := fmt.Sprintf("%s %s학년 - %s", req.School, req.Grade, req.Topic)

	entry := &model.ActivityLog{
		Username:   username,
		ActionType: model.ActionGenerate,
		Detail:     label,
		Extra1:     req.Topic,
		Extra2:     fmt.Sprintf("%d문제", req.Count),
		Extra3:     fmt.Sprintf("-%d장 (%s)", cost, license),
		FileRef:    fileRef,
	}

	if err := s.chargeAndLog(ctx, username, cost, entry, nil); err != nil {
		return nil, err
	}

	return &GenerateResult{
		Data:     result.Data,
		FileName: worksheet.FileName(req, false),
		Cost:     cost,
		FileRef:  fileRef,
	}, nil
}

// DailyFree 每日免费生成：固定 4 题、最低难度、个人授权
// 当天已领过直接拒绝；产出错误文档时不记日志，当天额度不作废
func (s *WorksheetService) DailyFree(ctx context.Context, username, school, grade, topic string) (*GenerateResult, error) {
	// 入口先查一次，当天已领过就不必再跑模型
	if err := s.checkDailyFreeQuota(ctx, username); err != nil {
		return nil, err
	}

	req := &worksheet.Request{
		School:     school,
		Grade:      grade,
		Topic:      topic,
		Difficulty: "하",
		Count:      s.cfg.Business.DailyFreeCount,
		Commercial: false,
	}

	result := s.generator.Generate(ctx, req)
	if result.Failed {
		return &GenerateResult{
			Data:     result.Data,
			FileName: worksheet.FileName(req, true),
			Failed:   true,
		}, nil
	}

	fileRef := s.upload(ctx, result.Data)
	label := fmt.Sprintf("%s %s학년 - %s", school, grade, topic)

	entry := &model.ActivityLog{
		Username:   username,
		ActionType: model.ActionDailyFree,
		Detail:     label,
		Extra1:     model.MarkerDailyFree,
		Extra2:     fmt.Sprintf("%d문제", req.Count),
		Extra3:     "0장",
		FileRef:    fileRef,
	}

	// 模型调用期间另一个请求可能已经领走额度，锁内重查一次
	if err := s.chargeAndLog(ctx, username, 0, entry, s.checkDailyFreeQuota); err != nil {
		return nil, err
	}

	return &GenerateResult{
		Data:     result.Data,
		FileName: worksheet.FileName(req, true),
		FileRef:  fileRef,
	}, nil
}

// checkDailyFreeQuota 当天（KST）已有 DAILY_FREE 日志即拒绝
func (s *WorksheetService) checkDailyFreeQuota(ctx context.Context, username string) error {
	from, to := kstDayRange(time.Now())
	used, err := s.logRepo.HasDailyFreeBetween(ctx, username, from, to)
	if err != nil {
		return fmt.Errorf("查询免费额度失败: %w", err)
	}
	if used {
		return ErrDailyFreeUsed
	}
	return nil
}

// upload 上传文档，失败时返回空引用
func (s *WorksheetService) upload(ctx context.Context, data []byte) string {
	key, err := s.blobStore.Upload(ctx, storage.NewObjectKey(), data)
	if err != nil {
		log.Printf("[Worksheet] 上传文档失败: %v", err)
		return ""
	}
	return key
}

// chargeAndLog 扣费和记日志放进同一事务，扣了费一定有对应日志
//
// 【关键点】先按用户维度拿分布式锁，锁内重读版本号再做 CAS 扣减：
// 两个标签页同时生成也不会把扣减互相覆盖，余额也不会被扣成负数。
// guard 在锁内执行，用来重查入口处的前置条件（比如免费额度）——
// 模型调用耗时长，入口的检查到这里可能已经过期
func (s *WorksheetService) chargeAndLog(ctx context.Context, username string, cost int64,
	entry *model.ActivityLog, guard func(context.Context, string) error) error {
	requestID := idgen.GenerateRequestID()
	creditLock := lock.NewCreditLock(s.redisClient, username, requestID)
	if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer creditLock.Unlock(ctx)

	if guard != nil {
		if err := guard(ctx, username); err != nil {
			return err
		}
	}

	// 锁内取最新版本号
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}
	if user.Credits < cost {
		return repository.ErrCreditNotEnough
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if cost > 0 {
			if err := s.userRepo.Deduct(ctx, tx, username, cost, user.Version); err != nil {
				return err
			}
		}

		if err := s.logRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录日志失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"username":   username,
			"action":     entry.ActionType,
			"detail":     entry.Detail,
			"cost":       cost,
			"file_ref":   entry.FileRef,
			"created_at": time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: username,
			Topic:      s.cfg.Kafka.Topic.WorksheetGenerated,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
}

package repository

import (
	"context"
	"errors"
	"strings"

	"geniemath/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrDuplicateUsername = errors.New("用户名已存在")
	ErrCreditNotEnough   = errors.New("이용권不足")
	ErrOptimisticLock    = errors.New("乐观锁冲突，请重试")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		// 唯一索引冲突即用户名重复，MySQL 与 sqlite 的报错文案不同
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique") {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListAll 读取全部用户（启动自检、运营脚本用）
func (r *UserRepository) ListAll(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error
	return users, err
}

// Deduct 扣减이용권
//
// 【关键点】扣减不是先读后写，而是一条带条件的 UPDATE：
// WHERE 同时校验余额充足和版本号未变，余额永远不会被扣成负数，
// 两个并发请求也不会互相覆盖对方的扣减
func (r *UserRepository) Deduct(ctx context.Context, tx *gorm.DB, username string, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("username = ? AND credits >= ? AND version = ?", username, amount, version).
		Updates(map[string]interface{}{
			"credits": gorm.Expr("credits - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 没更新到行：要么余额不够，要么版本号被并发请求改了
		user, err := r.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user.Credits < amount {
			return ErrCreditNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 增加이용권（充值到账、注册赠送）
func (r *UserRepository) Increase(ctx context.Context, tx *gorm.DB, username string, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"credits": gorm.Expr("credits + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

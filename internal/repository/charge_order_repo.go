package repository

import (
	"context"
	"errors"
	"time"

	"geniemath/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("充值订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
)

type ChargeOrderRepository struct {
	db *gorm.DB
}

func NewChargeOrderRepository(db *gorm.DB) *ChargeOrderRepository {
	return &ChargeOrderRepository{db: db}
}

func (r *ChargeOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.ChargeOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *ChargeOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.ChargeOrder, error) {
	var order model.ChargeOrder
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 条件更新订单状态，fromStatus 不匹配时视为非法流转
func (r *ChargeOrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}

	if toStatus == model.OrderStatusDone {
		now := time.Now()
		updates["paid_at"] = &now
	}

	result := tx.WithContext(ctx).
		Model(&model.ChargeOrder{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// GetExpiredOrders 查询已过期但还处于 CREATED 状态的订单
func (r *ChargeOrderRepository) GetExpiredOrders(ctx context.Context, limit int) ([]*model.ChargeOrder, error) {
	var orders []*model.ChargeOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND expired_at < ?", model.OrderStatusCreated, time.Now()).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

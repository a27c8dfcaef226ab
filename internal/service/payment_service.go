package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"geniemath/internal/client/toss"
	"geniemath/internal/config"
	"geniemath/internal/infrastructure/lock"
	"geniemath/internal/model"
	"geniemath/internal/repository"
	"geniemath/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrUnlistedAmount  = errors.New("판매 중인 충전 상품이 아닙니다")
	ErrAmountMismatch  = errors.New("결제 금액이 주문 금액과 다릅니다")
	ErrOrderNotPayable = errors.New("주문이 이미 처리되었거나 만료되었습니다")
)

// GatewayClient 支付网关的抽象，测试时用 httptest / fake 替换
type GatewayClient interface {
	Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*toss.ConfirmResult, error)
}

type PaymentService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	gateway     GatewayClient
	userRepo    *repository.UserRepository
	logRepo     *repository.LogRepository
	orderRepo   *repository.ChargeOrderRepository
	paymentRepo *repository.PaymentRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPaymentService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, gateway GatewayClient) *PaymentService {
	return &PaymentService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		gateway:     gateway,
		userRepo:    repository.NewUserRepository(db),
		logRepo:     repository.NewLogRepository(db),
		orderRepo:   repository.NewChargeOrderRepository(db),
		paymentRepo: repository.NewPaymentRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// Checkout 创建充值订单
// 回调只信任这里落库的金额，跳转参数被篡改也加不了钱
func (s *PaymentService) Checkout(ctx context.Context, username string, amount int64) (*model.ChargeOrder, error) {
	if !IsListedAmount(amount) {
		return nil, ErrUnlistedAmount
	}

	timeout := time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	order := &model.ChargeOrder{
		OrderNo:   idgen.GenerateOrderNo(),
		Username:  username,
		Amount:    amount,
		Credits:   CreditsForAmount(amount),
		Status:    model.OrderStatusCreated,
		ExpiredAt: time.Now().Add(timeout),
	}

	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, fmt.Errorf("创建充值订单失败: %w", err)
	}
	return order, nil
}

// ConfirmResult 确认结果
type ConfirmResult struct {
	AlreadyDone bool  `json:"already_done"` // 重复回调，没有任何变更
	Credits     int64 `json:"credits"`      // 本次到账이용권
	Amount      int64 `json:"amount"`
}

// Confirm 处理支付成功跳转，向网关确认并给이용권入账
//
// 【关键点】幂等三道闸：
// 1. 入口按 paymentKey 查支付表，处理过的直接返回
// 2. 拿到用户锁之后再查一次，挡住并发的重复回调
// 3. 支付表 paymentKey 唯一索引兜底，事务冲突即回滚
func (s *PaymentService) Confirm(ctx context.Context, username, paymentKey, orderNo string, amount int64) (*ConfirmResult, error) {
	existing, err := s.paymentRepo.GetByPaymentKey(ctx, paymentKey)
	if err != nil {
		return nil, fmt.Errorf("查询支付记录失败: %w", err)
	}
	if existing != nil {
		return &ConfirmResult{AlreadyDone: true, Credits: existing.Credits, Amount: existing.Amount}, nil
	}

	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Username != username {
		return nil, repository.ErrOrderNotFound
	}
	if order.Amount != amount {
		return nil, ErrAmountMismatch
	}
	if order.Status != model.OrderStatusCreated {
		return nil, ErrOrderNotPayable
	}

	creditLock := lock.NewCreditLock(s.redisClient, username, paymentKey)
	if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer creditLock.Unlock(ctx)

	// 锁内再查一次幂等
	existing, err = s.paymentRepo.GetByPaymentKey(ctx, paymentKey)
	if err != nil {
		return nil, fmt.Errorf("查询支付记录失败: %w", err)
	}
	if existing != nil {
		return &ConfirmResult{AlreadyDone: true, Credits: existing.Credits, Amount: existing.Amount}, nil
	}

	gwResult, err := s.gateway.Confirm(ctx, paymentKey, orderNo, amount)
	if err != nil {
		return nil, fmt.Errorf("支付网关确认失败: %w", err)
	}
	if gwResult.Status != toss.StatusDone {
		// 确认被拒：订单关闭，不入账
		if stErr := s.orderRepo.UpdateStatus(ctx, nil, orderNo, model.OrderStatusCreated, model.OrderStatusFailed); stErr != nil {
			log.Printf("[Payment] 标记订单失败状态失败: orderNo=%s, err=%v", orderNo, stErr)
		}
		msg := gwResult.Message
		if msg == "" {
			msg = gwResult.Status
		}
		return nil, fmt.Errorf("결제 실패: %s", msg)
	}

	// 价目表外的金额到账 0 张，但支付记录和日志照常落库
	credits := CreditsForAmount(order.Amount)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		payment := &model.Payment{
			PaymentKey: paymentKey,
			OrderNo:    orderNo,
			Username:   username,
			Amount:     order.Amount,
			Credits:    credits,
			Status:     gwResult.Status,
		}
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("记录支付失败: %w", err)
		}

		if credits > 0 {
			if err := s.userRepo.Increase(ctx, tx, username, credits); err != nil {
				return fmt.Errorf("이용권入账失败: %w", err)
			}
		}

		entry := &model.ActivityLog{
			Username:   username,
			ActionType: model.ActionPayment,
			Detail:     fmt.Sprintf("%d원", order.Amount),
			Extra1:     "충전",
			Extra2:     fmt.Sprintf("+%d장", credits),
		}
		if err := s.logRepo.Append(ctx, tx, entry); err != nil {
			return fmt.Errorf("记录日志失败: %w", err)
		}

		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.OrderStatusCreated, model.OrderStatusDone); err != nil {
			return fmt.Errorf("更新订单状态失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"order_no":    orderNo,
			"payment_key": paymentKey,
			"username":    username,
			"amount":      order.Amount,
			"credits":     credits,
			"paid_at":     time.Now().Format(time.RFC3339),
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: orderNo,
			Topic:      s.cfg.Kafka.Topic.PaymentCompleted,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Payment] 충전 완료: orderNo=%s, username=%s, amount=%d, credits=%d",
		orderNo, username, order.Amount, credits)

	return &ConfirmResult{Credits: credits, Amount: order.Amount}, nil
}

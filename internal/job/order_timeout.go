package job

import (
	"context"
	"log"
	"time"

	"geniemath/internal/model"
	"geniemath/internal/repository"

	"gorm.io/gorm"
)

// OrderTimeoutJob 定时扫描超时未支付的充值订单，关闭掉
// 订单关闭后网关回调会因状态校验被拒，不会出现关单后又入账
type OrderTimeoutJob struct {
	orderRepo *repository.ChargeOrderRepository
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOrderTimeoutJob(db *gorm.DB) *OrderTimeoutJob {
	return &OrderTimeoutJob{
		orderRepo: repository.NewChargeOrderRepository(db),
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 100,
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	log.Println("[OrderTimeout] 订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OrderTimeout] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[OrderTimeout] 任务停止")
			return
		case <-ticker.C:
			j.expireOrders(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *OrderTimeoutJob) expireOrders(ctx context.Context) {
	orders, err := j.orderRepo.GetExpiredOrders(ctx, j.batchSize)
	if err != nil {
		log.Printf("[OrderTimeout] 查询超时订单失败: %v", err)
		return
	}

	for _, order := range orders {
		// 状态条件更新，回调和关单并发时只有一方生效
		err := j.orderRepo.UpdateStatus(ctx, nil, order.OrderNo, model.OrderStatusCreated, model.OrderStatusExpired)
		if err != nil {
			log.Printf("[OrderTimeout] 关闭订单失败: orderNo=%s, err=%v", order.OrderNo, err)
			continue
		}
		log.Printf("[OrderTimeout] 订单超时关闭: orderNo=%s, username=%s", order.OrderNo, order.Username)
	}
}

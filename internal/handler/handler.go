package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"geniemath/internal/client/gemini"
	"geniemath/internal/client/toss"
	"geniemath/internal/config"
	"geniemath/internal/repository"
	"geniemath/internal/service"
	"geniemath/internal/worksheet"
	"geniemath/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg              *config.Config
	authService      *service.AuthService
	worksheetService *service.WorksheetService
	archiveService   *service.ArchiveService
	paymentService   *service.PaymentService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, blobStore service.BlobStorage) *Handler {
	generator := worksheet.NewGenerator(gemini.NewClient(&cfg.Gemini))
	return &Handler{
		cfg:              cfg,
		authService:      service.NewAuthService(db, cfg),
		worksheetService: service.NewWorksheetService(db, rdb, cfg, generator, blobStore),
		archiveService:   service.NewArchiveService(db, blobStore),
		paymentService:   service.NewPaymentService(db, rdb, cfg, toss.NewClient(&cfg.Toss)),
	}
}

// ============================================================
// 认证相关接口
// ============================================================

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 注册新用户
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.authService.Register(c.Request.Context(), req.Username, req.Name, req.Password); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			response.BusinessError(c, response.CodeDuplicateUsername, "이미 사용 중인 아이디입니다")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"username":     req.Username,
		"signup_bonus": h.cfg.Business.SignupBonus,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录并签发凭证
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"token":    token,
		"username": user.Username,
		"name":     user.Name,
		"credits":  user.Credits,
	})
}

// GetBalance 查询이용권余额
// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	username := c.GetString(ctxKeyUsername)

	user, err := h.authService.GetBalance(c.Request.Context(), username)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"username": user.Username,
		"name":     user.Name,
		"credits":  user.Credits,
	})
}

// ============================================================
// 学习지生成相关接口
// ============================================================

// GenerateRequest 生成学习지请求
type GenerateRequest struct {
	School     string `json:"school" binding:"required"`     // 초등/중등/고등
	Grade      string `json:"grade" binding:"required"`      // 학년
	Topic      string `json:"topic" binding:"required"`      // 단원
	Difficulty string `json:"difficulty" binding:"required"` // 하/중/상
	Count      int    `json:"count" binding:"required,gt=0"`
	Commercial bool   `json:"commercial"` // 상업용 라이선스
}

// Generate 付费生成学习지，返回 docx 文件
// POST /api/v1/worksheet/generate
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	username := c.GetString(ctxKeyUsername)
	result, err := h.worksheetService.Generate(c.Request.Context(), username, &worksheet.Request{
		School:     req.School,
		Grade:      req.Grade,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      req.Count,
		Commercial: req.Commercial,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCreditNotEnough) {
			response.BusinessError(c, response.CodeCreditNotEnough, "이용권이 부족합니다")
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	writeDocx(c, result.FileName, result.Data)
}

// DailyFreeRequest 每日免费生成请求，题数和难度是固定的
type DailyFreeRequest struct {
	School string `json:"school" binding:"required"`
	Grade  string `json:"grade" binding:"required"`
	Topic  string `json:"topic" binding:"required"`
}

// DailyFree 每日免费学习지
// POST /api/v1/worksheet/daily-free
func (h *Handler) DailyFree(c *gin.Context) {
	var req DailyFreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	username := c.GetString(ctxKeyUsername)
	result, err := h.worksheetService.DailyFree(c.Request.Context(), username, req.School, req.Grade, req.Topic)
	if err != nil {
		if errors.Is(err, service.ErrDailyFreeUsed) {
			response.BusinessError(c, response.CodeDailyFreeUsed, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	writeDocx(c, result.FileName, result.Data)
}

// ============================================================
// 보관함相关接口
// ============================================================

// ListArchive 查询用户的文档보관함
// GET /api/v1/archive/list
func (h *Handler) ListArchive(c *gin.Context) {
	username := c.GetString(ctxKeyUsername)

	history, err := h.archiveService.ListHistory(c.Request.Context(), username)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":  history,
		"total": len(history),
	})
}

// DownloadArchive 重新下载历史文档
// GET /api/v1/archive/download?ref=xxx&name=xxx
func (h *Handler) DownloadArchive(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		response.ParamError(c, "ref 参数不能为空")
		return
	}

	data := h.archiveService.Download(c.Request.Context(), ref)
	if data == nil {
		response.BusinessError(c, response.CodeFileUnavailable, "파일을 찾을 수 없습니다")
		return
	}

	name := c.DefaultQuery("name", "지니매쓰_학습지.docx")
	writeDocx(c, name, data)
}

// ============================================================
// 充值相关接口
// ============================================================

// CheckoutRequest 创建充值订单请求
type CheckoutRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Checkout 创建充值订单，前端拿 order_no 和 client_key 拉起支付窗口
// POST /api/v1/store/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	username := c.GetString(ctxKeyUsername)
	order, err := h.paymentService.Checkout(c.Request.Context(), username, req.Amount)
	if err != nil {
		if errors.Is(err, service.ErrUnlistedAmount) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"order_no":   order.OrderNo,
		"amount":     order.Amount,
		"credits":    order.Credits,
		"client_key": h.cfg.Toss.ClientKey,
	})
}

// ConfirmPayment 支付成功跳转回调
// GET /api/v1/payment/confirm?paymentKey=xxx&orderId=xxx&amount=xxx
//
// 【关键点】金额只信任 Checkout 时落库的订单，跳转参数只用来比对；
// 同一 paymentKey 重复回调是幂等的，只会入账一次
func (h *Handler) ConfirmPayment(c *gin.Context) {
	paymentKey := c.Query("paymentKey")
	orderNo := c.Query("orderId")
	amountStr := c.Query("amount")

	if paymentKey == "" || orderNo == "" {
		response.ParamError(c, "paymentKey、orderId 参数不能为空")
		return
	}
	amount, err := strconv.ParseInt(amountStr, 10, 64)
	if err != nil {
		response.ParamError(c, "amount 参数错误")
		return
	}

	username := c.GetString(ctxKeyUsername)
	result, err := h.paymentService.Confirm(c.Request.Context(), username, paymentKey, orderNo, amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			response.BusinessError(c, response.CodeOrderNotFound, "주문을 찾을 수 없습니다")
		case errors.Is(err, service.ErrAmountMismatch):
			response.BusinessError(c, response.CodeAmountMismatch, err.Error())
		case errors.Is(err, service.ErrOrderNotPayable):
			response.BusinessError(c, response.CodePaymentFailed, err.Error())
		default:
			response.BusinessError(c, response.CodePaymentFailed, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"already_done": result.AlreadyDone,
		"credits":      result.Credits,
		"amount":       result.Amount,
	})
}

// writeDocx 以附件形式返回 docx，韩文文件名走 RFC 5987 编码
func writeDocx(c *gin.Context, fileName string, data []byte) {
	disposition := fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(fileName))
	c.Header("Content-Disposition", disposition)
	c.Data(http.StatusOK, docxContentType, data)
}

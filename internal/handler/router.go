package handler

import (
	"geniemath/internal/config"
	"geniemath/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, blobStore service.BlobStorage) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, blobStore)
	auth := AuthMiddleware(h.authService)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 认证相关（无需登录）
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		// 账户相关
		account := api.Group("/account", auth)
		{
			account.GET("/balance", h.GetBalance)
		}

		// 学习지生成相关
		ws := api.Group("/worksheet", auth)
		{
			ws.POST("/generate", h.Generate)
			ws.POST("/daily-free", h.DailyFree)
		}

		// 보관함相关
		archive := api.Group("/archive", auth)
		{
			archive.GET("/list", h.ListArchive)
			archive.GET("/download", h.DownloadArchive)
		}

		// 充值相关
		store := api.Group("/store", auth)
		{
			store.POST("/checkout", h.Checkout)
		}
		payment := api.Group("/payment", auth)
		{
			payment.GET("/confirm", h.ConfirmPayment)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

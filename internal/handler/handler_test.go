package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"geniemath/internal/config"
	"geniemath/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// nullBlob 不可用的对象存储，上传失败会被业务层容忍
type nullBlob struct{}

func (nullBlob) Upload(ctx context.Context, key string, data []byte) (string, error) {
	return "", fmt.Errorf("storage unavailable")
}

func (nullBlob) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("storage unavailable")
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.ActivityLog{},
		&model.ChargeOrder{},
		&model.Payment{},
		&model.OutboxMessage{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTLHours = 1
	cfg.Business.SignupBonus = 5
	cfg.Business.DailyFreeCount = 4
	cfg.Business.OrderTimeoutMinutes = 30
	cfg.Kafka.Topic.WorksheetGenerated = "worksheet.generated"
	cfg.Kafka.Topic.PaymentCompleted = "payment.completed"

	return SetupRouter(db, rdb, cfg, nullBlob{})
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code, "message=%s", resp.Message)
	return resp.Data
}

func registerAndLogin(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "hong", "name": "홍길동", "password": "pw1234",
	})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w)

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "hong", "password": "pw1234",
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)
	return data["token"].(string)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRegisterLoginBalance(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/account/balance", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)
	assert.Equal(t, "hong", data["username"])
	assert.Equal(t, float64(5), data["credits"])
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/account/balance",
		"/api/v1/archive/list",
	} {
		w := doJSON(t, r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := doJSON(t, r, http.MethodGet, "/api/v1/account/balance", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRouter(t)
	registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "hong", "name": "다른사람", "password": "pw5678",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":1003`)
}

func TestDailyFreeReturnsDocument(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r)

	// 模型未配置：返回的是错误说明文档，但仍是合法 docx 附件
	w := doJSON(t, r, http.MethodPost, "/api/v1/worksheet/daily-free", token, gin.H{
		"school": "초등", "grade": "3", "topic": "분수",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, docxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	// docx 是 zip 包，以 PK 开头
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestCheckoutFlow(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/store/checkout", token, gin.H{"amount": 1000})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)
	assert.NotEmpty(t, data["order_no"])
	assert.Equal(t, float64(20), data["credits"])

	// 价目表外的金额直接拒绝
	w = doJSON(t, r, http.MethodPost, "/api/v1/store/checkout", token, gin.H{"amount": 1234})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":400`)
}

func TestArchiveListEmpty(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/archive/list", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)
	assert.Equal(t, float64(0), data["total"])
}

func TestConfirmPaymentParamValidation(t *testing.T) {
	r := newTestRouter(t)
	token := registerAndLogin(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/payment/confirm?paymentKey=pk1&orderId=ORD1&amount=abc", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":400`)

	w = doJSON(t, r, http.MethodGet, "/api/v1/payment/confirm?amount=1000", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":400`)
}

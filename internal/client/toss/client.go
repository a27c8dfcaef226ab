package toss

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"geniemath/internal/config"
)

const defaultBaseURL = "https://api.tosspayments.com"

// StatusDone 网关确认成功时的状态值
const StatusDone = "DONE"

// Client 토스페이먼츠 결제 확인客户端
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.TossConfig) *Client {
	return &Client{
		secretKey:  cfg.SecretKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL 测试时指向 httptest 服务
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type confirmRequest struct {
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
}

// ConfirmResult 网关确认接口的关键字段，原始响应一并保留
type ConfirmResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Confirm 调用 /v1/payments/confirm 确认一笔支付
//
// Basic Auth 按网关约定用 base64(secretKey + ":")，
// 网关侧以 paymentKey 保证幂等，这里只负责如实转发
func (c *Client) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*ConfirmResult, error) {
	body, err := json.Marshal(confirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	encodedKey := base64.StdEncoding.EncodeToString([]byte(c.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+encodedKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求支付网关失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取网关响应失败: %w", err)
	}

	// 确认失败时网关也返回 JSON（code + message），照常解析交给上层判断
	var result ConfirmResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("解析网关响应失败: %w", err)
	}
	return &result, nil
}

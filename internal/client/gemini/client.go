package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"geniemath/internal/config"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client Gemini generateContent 的瘦客户端
// 只有一个调用：结构化提示词进、自由文本出，没必要引一整套 SDK
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.GeminiConfig) *Client {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: defaultBaseURL,
		// 模型推理偏慢，超时放宽到2分钟
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// SetBaseURL 测试时指向 httptest 服务
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

// Configured API Key 缺失时服务照常启动，生成流程降级为错误说明文档
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateContent 请求一次补全，返回拼接后的纯文本
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("Gemini API Key 未配置")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求模型失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取模型响应失败: %w", err)
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("解析模型响应失败: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("模型返回错误: %s", result.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("模型返回状态码 %d", resp.StatusCode)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("模型没有返回内容")
	}

	var sb strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

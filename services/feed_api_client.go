package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"oddsfeed-service/logger"
)

// FeedAPIClient 订阅后端的 REST 客户端。
// 探测/订阅/退订三个调用的响应体按原始字符串检查标记子串
// （"CONTENT_NOT_FOUND"、"version"），不是结构化状态码——
// 这是后端的既有契约，必须按字符串嗅探保持兼容
type FeedAPIClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewFeedAPIClient 创建订阅后端客户端
func NewFeedAPIClient(baseURL, accessToken string) *FeedAPIClient {
	return &FeedAPIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckEventDetails 探测赛事组是否可用，返回原始响应体
func (c *FeedAPIClient) CheckEventDetails(eventGroupID string) (string, error) {
	url := fmt.Sprintf("%s/events/%s/details/check", c.baseURL, eventGroupID)
	return c.doWithRetry("GET", url, "")
}

// Subscribe 订阅赛事组，返回原始响应体（确认标记由调用方检查）
func (c *FeedAPIClient) Subscribe(eventGroupID, sessionToken string) (string, error) {
	url := fmt.Sprintf("%s/events/%s/subscribe", c.baseURL, eventGroupID)
	return c.doWithRetry("POST", url, sessionToken)
}

// Unsubscribe 退订赛事组
func (c *FeedAPIClient) Unsubscribe(eventGroupID, sessionToken string) (string, error) {
	url := fmt.Sprintf("%s/events/%s/unsubscribe", c.baseURL, eventGroupID)
	return c.doWithRetry("POST", url, sessionToken)
}

// doWithRetry 传输层失败时重试一次
func (c *FeedAPIClient) doWithRetry(method, url, sessionToken string) (string, error) {
	body, err := c.doOnce(method, url, sessionToken)
	if err == nil {
		return body, nil
	}

	logger.Printf("[FeedAPI] Request failed, retrying once: %v", err)
	return c.doOnce(method, url, sessionToken)
}

func (c *FeedAPIClient) doOnce(method, url, sessionToken string) (string, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-access-token", c.accessToken)
	if sessionToken != "" {
		req.Header.Set("x-session-token", sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(data), fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
	}

	return string(data), nil
}

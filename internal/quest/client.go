package quest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"CityClaim/internal/cache"
	"CityClaim/internal/geo"
	"CityClaim/pkg/errors"
)

// Generator 上游任务生成器（AI 协作方）
type Generator interface {
	Suggest(ctx context.Context, req GenerateRequest) ([]Suggestion, error)
}

// GenerateRequest 发给上游的请求体
type GenerateRequest struct {
	Origin        geo.Point   `json:"origin"`
	WindowMinutes int         `json:"window_minutes"`
	MaxQuests     int         `json:"max_quests"`
	Candidates    []Candidate `json:"candidates"`
}

// ClientConfig 上游客户端配置
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	RPS      float64
}

// Client 调用上游 HTTP 接口；限流 + 熔断，任何传输、状态码、解析错误都按上游失败处理
type Client struct {
	cfg     ClientConfig
	http    *client.Client
	limiter *rate.Limiter
	breaker *cache.CircuitBreaker
}

// NewClient 创建上游客户端
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(3*time.Second),
		client.WithClientReadTimeout(cfg.Timeout),
		client.WithWriteTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest client: %w", err)
	}

	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		breaker: cache.NewCircuitBreaker("quest-upstream", 5, 30*time.Second),
	}, nil
}

// Suggest 实现 Generator，所有失败都包装成 errors.QuestUpstreamFailed
func (c *Client) Suggest(ctx context.Context, req GenerateRequest) ([]Suggestion, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint not configured", errors.QuestUpstreamFailed)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", errors.QuestUpstreamFailed, err)
	}

	var out []Suggestion
	err := c.breaker.Call(ctx, func() error {
		body, err := c.post(ctx, req)
		if err != nil {
			return err
		}
		out, err = DecodeSuggestions(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.QuestUpstreamFailed, err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, payload GenerateRequest) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quest request: %w", err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.Endpoint)
	req.SetMethod(consts.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	if c.cfg.APIKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.SetBody(raw)

	if err := c.http.DoTimeout(ctx, req, resp, c.cfg.Timeout); err != nil {
		return nil, fmt.Errorf("quest upstream request failed: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, fmt.Errorf("quest upstream returned status %d", code)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// DecodeSuggestions 兼容 {"quests":[...]}、{"data":{"quests":[...]}} 和裸数组三种形态
func DecodeSuggestions(body []byte) ([]Suggestion, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty quest upstream response")
	}

	if body[0] == '[' {
		var list []Suggestion
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("failed to decode quest list: %w", err)
		}
		return list, nil
	}

	var envelope struct {
		Quests []Suggestion `json:"quests"`
		Data   *struct {
			Quests []Suggestion `json:"quests"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode quest envelope: %w", err)
	}
	if envelope.Quests != nil {
		return envelope.Quests, nil
	}
	if envelope.Data != nil && envelope.Data.Quests != nil {
		return envelope.Data.Quests, nil
	}
	return nil, fmt.Errorf("quest upstream response has no quests")
}

// FlexInt64 只接受整数 123 或整数字符串 "123"。
// 小数、指数、非数字一律置 0，随后因不在候选集而被拒绝，不做取整
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	*f = 0
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		raw = s
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	*f = FlexInt64(v)
	return nil
}

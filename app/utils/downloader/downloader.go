package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resty.dev/v3"
)

// FetchConfig 拉取配置
type FetchConfig struct {
	UserAgent string        // User-Agent
	Timeout   time.Duration // 超时时间
	MaxBytes  int64         // 响应体大小上限，0 表示不限制
}

// DefaultFetchConfig 默认拉取配置
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		UserAgent: "track-forge/1.0",
		Timeout:   time.Minute * 2,
		MaxBytes:  50 * 1024 * 1024,
	}
}

// FetchResult 拉取结果
type FetchResult struct {
	Data        []byte        // 内容
	ContentType string        // 响应的 Content-Type
	Duration    time.Duration // 耗时
}

// Fetcher 从生成接口返回的临时地址拉取媒体内容
type Fetcher struct {
	client *resty.Client
	config *FetchConfig
}

// New 创建拉取器
func New(config *FetchConfig) *Fetcher {
	if config == nil {
		config = DefaultFetchConfig()
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "*/*").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if config.MaxBytes > 0 {
		client.SetResponseBodyLimit(config.MaxBytes)
	}

	return &Fetcher{client: client, config: config}
}

// Fetch 拉取 url 的完整内容
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if url == "" {
		return nil, fmt.Errorf("下载地址为空")
	}

	startTime := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		body := resp.String()
		if len(body) > 1024 {
			body = body[:1024]
		}
		return nil, fmt.Errorf("HTTP请求失败，状态码: %d, 响应: %s", resp.StatusCode(), body)
	}

	data := resp.Bytes()
	if len(data) == 0 {
		return nil, fmt.Errorf("下载的内容为空: %s", url)
	}

	return &FetchResult{
		Data:        data,
		ContentType: resp.Header().Get("Content-Type"),
		Duration:    time.Since(startTime),
	}, nil
}

// Close 释放底层连接
func (f *Fetcher) Close() error {
	return f.client.Close()
}

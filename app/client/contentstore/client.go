// Package contentstore 封装 IPFS pinning 服务：上传媒体与元数据，返回内容标识。
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"track-forge/app/config"
	"track-forge/app/model"

	"resty.dev/v3"
)

const (
	pinFilePath = "/pinning/pinFileToIPFS"
	pinJSONPath = "/pinning/pinJSONToIPFS"
)

// 上游不同版本返回的内容标识字段名不一致，按顺序尝试
var contentIDKeys = []string{"IpfsHash", "ipfsHash", "Hash", "hash"}

// Client 内容存储客户端
type Client struct {
	client  *resty.Client
	gateway string
}

// New 创建内容存储客户端
func New(cfg config.ContentStoreConfig) *Client {
	client := resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.JWT != "" {
		client.SetAuthToken(cfg.JWT)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{
		client:  client,
		gateway: strings.TrimRight(cfg.GatewayURL, "/"),
	}
}

// Close 释放底层连接
func (c *Client) Close() error {
	return c.client.Close()
}

// GatewayURL 返回内容标识对应的网关地址，不做任何 I/O
func (c *Client) GatewayURL(contentID string) string {
	if contentID == "" {
		return ""
	}
	return c.gateway + "/" + contentID
}

// Upload 上传二进制内容
func (c *Client) Upload(ctx context.Context, name string, data []byte) (model.UploadResult, error) {
	if len(data) == 0 {
		return model.UploadResult{}, model.NewPipelineError(model.ErrUpload, "上传内容为空: "+name)
	}

	contentType := http.DetectContentType(data)
	resp, err := c.client.R().
		SetContext(ctx).
		SetMultipartField("file", name, contentType, bytes.NewReader(data)).
		SetMultipartFormData(map[string]string{
			"pinataMetadata": fmt.Sprintf(`{"name":%q}`, name),
		}).
		Post(pinFilePath)
	if err != nil {
		return model.UploadResult{}, model.WrapPipelineError(model.ErrUpload, "内容存储不可达", err)
	}
	return c.result(resp)
}

// UploadJSON 上传 JSON 文档（曲目元数据）
func (c *Client) UploadJSON(ctx context.Context, name string, v any) (model.UploadResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"pinataContent":  v,
			"pinataMetadata": map[string]string{"name": name},
		}).
		Post(pinJSONPath)
	if err != nil {
		return model.UploadResult{}, model.WrapPipelineError(model.ErrUpload, "内容存储不可达", err)
	}
	return c.result(resp)
}

func (c *Client) result(resp *resty.Response) (model.UploadResult, error) {
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return model.UploadResult{}, model.NewPipelineError(model.ErrUpload,
			fmt.Sprintf("上传失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String()))
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return model.UploadResult{}, model.WrapPipelineError(model.ErrUpload, "解析上传响应失败", err)
	}

	cid, ok := NormalizeUploadResponse(body)
	if !ok {
		return model.UploadResult{}, model.NewPipelineError(model.ErrUpload, "上传响应中没有内容标识")
	}
	return model.UploadResult{ContentID: cid, GatewayURL: c.GatewayURL(cid)}, nil
}

// NormalizeUploadResponse 从上游响应中取出内容标识。
// 支持 IpfsHash / ipfsHash / Hash / hash 四种写法，也支持包在 data 字段里的情况。
func NormalizeUploadResponse(body map[string]any) (string, bool) {
	if body == nil {
		return "", false
	}
	for _, key := range contentIDKeys {
		if v, ok := body[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	if nested, ok := body["data"].(map[string]any); ok {
		return NormalizeUploadResponse(nested)
	}
	return "", false
}

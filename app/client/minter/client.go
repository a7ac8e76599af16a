// Package minter 调用钱包/合约中继接口完成 NFT 铸造。
package minter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"track-forge/app/config"
	"track-forge/app/model"

	"resty.dev/v3"
)

const mintPath = "/mint"

// Client 铸造中继客户端
type Client struct {
	client   *resty.Client
	contract string
}

// New 创建铸造客户端
func New(cfg config.MintConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Client{client: client, contract: cfg.Contract}
}

// Close 释放底层连接
func (c *Client) Close() error {
	return c.client.Close()
}

type mintBody struct {
	model.MintMetadata
	Contract string `json:"contract,omitempty"`
}

type mintResponse struct {
	Success bool       `json:"success"`
	TokenID flexString `json:"tokenId"`
	TxHash  string     `json:"txHash"`
	Error   string     `json:"error"`
}

// Mint 提交一次铸造交易。接口层面的失败放进 MintResult，只有请求本身无法完成时才返回 error
func (c *Client) Mint(ctx context.Context, meta model.MintMetadata) (model.MintResult, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(mintBody{MintMetadata: meta, Contract: c.contract}).
		Post(mintPath)
	if err != nil {
		return model.MintResult{}, fmt.Errorf("铸造请求失败: %w", err)
	}

	var out mintResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return model.MintResult{}, fmt.Errorf("解析铸造响应失败，状态码: %d, 响应: %s", resp.StatusCode(), resp.String())
	}

	result := model.MintResult{
		Success: out.Success,
		TokenID: string(out.TokenID),
		TxHash:  out.TxHash,
		Error:   out.Error,
	}
	if resp.StatusCode() >= 300 {
		result.Success = false
		if result.Error == "" {
			result.Error = fmt.Sprintf("铸造接口返回状态码 %d", resp.StatusCode())
		}
	}
	return result, nil
}

// flexString 兼容 tokenId 以数字或字符串返回
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

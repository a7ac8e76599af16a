package model

// DefaultRoyaltyBps 默认版税（基点）
const DefaultRoyaltyBps = 500

// MintMetadata 铸造接口的请求体
type MintMetadata struct {
	To               string  `json:"to"`
	Title            string  `json:"title"`
	Artist           string  `json:"artist"`
	Genre            string  `json:"genre"`
	Duration         float64 `json:"duration"`
	AudioContentID   string  `json:"audioContentId"`
	ArtworkContentID string  `json:"artworkContentId"`
	RoyaltyBps       int     `json:"royaltyBps"`
	IsExplicit       bool    `json:"isExplicit"`
	MetadataURI      string  `json:"metadataURI"`
	SourceID         string  `json:"sourceId"`
	TaskID           string  `json:"taskId"`
}

// MintResult 铸造结果
type MintResult struct {
	Success bool   `json:"success"`
	TokenID string `json:"tokenId,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Complete 成功且同时携带 tokenId 与 txHash
func (r MintResult) Complete() bool {
	return r.Success && r.TokenID != "" && r.TxHash != ""
}

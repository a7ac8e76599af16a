package model

import (
	"errors"
	"time"
)

// GeneratedTrack 生成的单条曲目，随上传和铸造步骤原地更新
type GeneratedTrack struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SourceID  string    `gorm:"size:100;index;comment:上游曲目ID" json:"source_id"`
	RunID     string    `gorm:"size:36;index;comment:所属工作流" json:"run_id"`
	TaskID    string    `gorm:"size:100;index;comment:生成任务ID" json:"task_id"`
	Owner     string    `gorm:"size:64;index;not null;comment:钱包地址" json:"owner"`
	Title     string    `gorm:"size:255" json:"title"`
	Artist    string    `gorm:"size:255" json:"artist"`
	Duration  float64   `json:"duration"`
	AudioURL  string    `gorm:"size:1000" json:"audio_url"`
	ImageURL  string    `gorm:"size:1000" json:"image_url"`
	Tags      string    `gorm:"size:500" json:"tags"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	ModelName string    `gorm:"size:50" json:"model_name"`
	Genre     string    `gorm:"size:100" json:"genre"`
	Explicit  bool      `gorm:"default:false" json:"is_explicit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 内容存储
	AudioCID     string `gorm:"size:128" json:"audio_cid,omitempty"`
	ImageCID     string `gorm:"size:128" json:"image_cid,omitempty"`
	MetadataCID  string `gorm:"size:128" json:"metadata_cid,omitempty"`
	UploadFailed bool   `gorm:"default:false" json:"upload_failed"`
	UploadError  string `gorm:"type:text" json:"upload_error,omitempty"`

	// 铸造
	Minted    bool       `gorm:"default:false;index" json:"minted"`
	TokenID   string     `gorm:"size:100" json:"token_id,omitempty"`
	TxHash    string     `gorm:"size:100" json:"tx_hash,omitempty"`
	MintError string     `gorm:"type:text" json:"mint_error,omitempty"`
	MintedAt  *time.Time `json:"minted_at,omitempty"`
}

// TableName 指定表名
func (GeneratedTrack) TableName() string {
	return "generated_tracks"
}

var (
	errIncompleteMint = errors.New("铸造结果缺少 tokenId 或 txHash")
	errAlreadyMinted  = errors.New("曲目已铸造")
)

// HasContentID 是否已拿到音频内容标识
func (t *GeneratedTrack) HasContentID() bool {
	return t.AudioCID != ""
}

// MarkMinted 标记为已铸造；tokenId 与 txHash 必须同时存在，已铸造的曲目不可再次标记
func (t *GeneratedTrack) MarkMinted(tokenID, txHash string, at time.Time) error {
	if t.Minted {
		return errAlreadyMinted
	}
	if tokenID == "" || txHash == "" {
		return errIncompleteMint
	}
	t.Minted = true
	t.TokenID = tokenID
	t.TxHash = txHash
	t.MintError = ""
	t.MintedAt = &at
	return nil
}

// RecordStatus 返回写入数据流时使用的状态
func (t *GeneratedTrack) RecordStatus() RecordStatus {
	if t.Minted {
		return RecordMinted
	}
	return RecordGenerated
}

// NewGeneratedTrack 由上游原始数据构建曲目
func NewGeneratedTrack(runID, taskID, owner, artist string, data GeneratedTrackData) *GeneratedTrack {
	return &GeneratedTrack{
		SourceID:  data.ID,
		RunID:     runID,
		TaskID:    taskID,
		Owner:     owner,
		Title:     data.Title,
		Artist:    artist,
		Duration:  data.Duration,
		AudioURL:  data.AudioURL,
		ImageURL:  data.ImageURL,
		Tags:      data.Tags,
		Prompt:    data.Prompt,
		ModelName: data.ModelName,
	}
}

package model

import "time"

// RecordStatus 数据流记录状态
type RecordStatus string

const (
	RecordGenerated RecordStatus = "generated"
	RecordMinted    RecordStatus = "minted"
)

// TrackRecord 数据流中的一条只追加记录
type TrackRecord struct {
	ID        uint         `gorm:"primarykey" json:"id"`
	Owner     string       `gorm:"size:64;index;not null" json:"owner"`
	TaskID    string       `gorm:"size:100;index" json:"task_id"`
	RunID     string       `gorm:"size:36;index" json:"run_id"`
	Title     string       `gorm:"size:255" json:"title"`
	AudioURL  string       `gorm:"size:1000" json:"audio_url"`
	ImageURL  string       `gorm:"size:1000" json:"image_url"`
	Prompt    string       `gorm:"type:text" json:"prompt"`
	Style     string       `gorm:"size:255" json:"style"`
	Lyrics    string       `gorm:"type:text" json:"lyrics"`
	Status    RecordStatus `gorm:"size:20;index" json:"status"`
	TokenID   string       `gorm:"size:100" json:"token_id,omitempty"`
	TxHash    string       `gorm:"size:100" json:"tx_hash,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName 指定表名
func (TrackRecord) TableName() string {
	return "track_records"
}

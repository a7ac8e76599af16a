package model

import (
	"time"
)

// DayLayout 计数日期桶的格式（本地时区）
const DayLayout = "2006-01-02"

// Unlimited 艺术家钱包的剩余次数
const Unlimited = -1

// GenerationLimit 按钱包、按天的生成计数
type GenerationLimit struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Wallet    string    `gorm:"size:64;uniqueIndex;not null;comment:钱包地址(小写)" json:"wallet"`
	Date      string    `gorm:"size:10;comment:日期桶" json:"date"`
	Count     int       `gorm:"default:0;comment:当日已用次数" json:"count"`
	LastTask  string    `gorm:"size:100;comment:最后一次计数的任务ID" json:"last_task"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (GenerationLimit) TableName() string {
	return "generation_limits"
}

// UsageOn 返回指定日期桶的已用次数，日期不匹配或数据损坏时视为未使用
func (l *GenerationLimit) UsageOn(day string) int {
	if l == nil || l.Count < 0 || l.Date != day {
		return 0
	}
	if _, err := time.Parse(DayLayout, l.Date); err != nil {
		return 0
	}
	return l.Count
}

// LimitStatus CheckLimit 的结果
type LimitStatus struct {
	CanGenerate bool      `json:"can_generate"`
	Remaining   int       `json:"remaining"` // 艺术家为 Unlimited
	TotalToday  int       `json:"total_today"`
	ResetTime   time.Time `json:"reset_time"`
	IsArtist    bool      `json:"is_artist"`
}

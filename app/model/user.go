package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User 用户模型，一个用户绑定一个钱包地址
type User struct {
	ID            uint           `json:"id" gorm:"primarykey"`
	Username      string         `json:"username" gorm:"uniqueIndex;not null"`
	Password      string         `json:"-" gorm:"not null"` // json:"-" 确保密码不会被序列化
	WalletAddress string         `json:"wallet_address" gorm:"size:64;index"`
	DisplayName   string         `json:"display_name" gorm:"size:100"`
	IsArtist      bool           `json:"is_artist" gorm:"default:false"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	IsAdmin       bool           `json:"is_admin" gorm:"default:false"`
	LastLogin     *time.Time     `json:"last_login"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// NormalizeWallet 钱包地址统一转小写去空格
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Owner 发起工作流的钱包身份
type Owner struct {
	Wallet   string `json:"wallet"`
	Name     string `json:"name"`
	IsArtist bool   `json:"is_artist"`
}

package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	ContentStore ContentStoreConfig `mapstructure:"content_store"`
	Mint         MintConfig         `mapstructure:"mint"`
	Limits       LimitsConfig       `mapstructure:"limits"`
	Artists      ArtistsConfig      `mapstructure:"artists"`
	Cleanup      CleanupConfig      `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Wallet   string `mapstructure:"wallet"` // 管理员钱包地址
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志目录
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // sqlite 文件路径
}

// GenerationConfig AI 音乐生成接口配置
type GenerationConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	CallbackURL  string        `mapstructure:"callback_url"`
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次请求超时
	MaxAttempts  int           `mapstructure:"max_attempts"`  // 轮询最大次数
	InitialDelay time.Duration `mapstructure:"initial_delay"` // 首次轮询等待
	MaxDelay     time.Duration `mapstructure:"max_delay"`     // 轮询等待上限
}

// ContentStoreConfig 内容寻址存储（IPFS pinning）配置
type ContentStoreConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	JWT           string        `mapstructure:"jwt"`
	GatewayURL    string        `mapstructure:"gateway_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxMediaBytes int64         `mapstructure:"max_media_bytes"` // 拉取源媒体的大小上限
	ArtworkSize   int           `mapstructure:"artwork_size"`    // 封面边长（像素）
}

// MintConfig 铸造接口配置
type MintConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Contract   string        `mapstructure:"contract"`
	RoyaltyBps int           `mapstructure:"royalty_bps"`
	Spacing    time.Duration `mapstructure:"spacing"` // 同一钱包两次铸造的最小间隔
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LimitsConfig 生成次数限制
type LimitsConfig struct {
	FreeDaily int    `mapstructure:"free_daily"`
	Store     string `mapstructure:"store"` // database 或 memory
}

// ArtistsConfig 艺术家白名单
type ArtistsConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// CleanupConfig 定时清理
type CleanupConfig struct {
	Schedule     string `mapstructure:"schedule"`      // cron 表达式
	RunRetention int    `mapstructure:"run_retention"` // 运行记录保留天数
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "track-forge")

	viper.SetDefault("database.path", "data/track-forge.db")

	// 生成接口
	viper.SetDefault("generation.base_url", "https://api.sunoapi.org")
	viper.SetDefault("generation.timeout", 30*time.Second)
	viper.SetDefault("generation.max_attempts", 40)
	viper.SetDefault("generation.initial_delay", 2*time.Second)
	viper.SetDefault("generation.max_delay", 8*time.Second)

	// 内容存储
	viper.SetDefault("content_store.base_url", "https://api.pinata.cloud")
	viper.SetDefault("content_store.gateway_url", "https://gateway.pinata.cloud/ipfs")
	viper.SetDefault("content_store.timeout", 2*time.Minute)
	viper.SetDefault("content_store.max_media_bytes", 50*1024*1024)
	viper.SetDefault("content_store.artwork_size", 1024)

	// 铸造
	viper.SetDefault("mint.royalty_bps", 500)
	viper.SetDefault("mint.spacing", time.Second)
	viper.SetDefault("mint.timeout", 60*time.Second)

	viper.SetDefault("limits.free_daily", 3)
	viper.SetDefault("limits.store", "database")

	viper.SetDefault("artists.file", "data/artists.txt")
	viper.SetDefault("artists.watch", true)

	viper.SetDefault("cleanup.schedule", "@every 1h")
	viper.SetDefault("cleanup.run_retention", 30)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Generation.BaseURL == "" {
		return fmt.Errorf("生成接口地址未设置")
	}
	if config.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts 必须大于 0")
	}
	if config.Generation.InitialDelay <= 0 || config.Generation.MaxDelay < config.Generation.InitialDelay {
		return fmt.Errorf("generation 轮询间隔配置无效")
	}
	if config.Mint.Spacing < time.Second {
		return fmt.Errorf("mint.spacing 不能小于 1s")
	}
	if config.Limits.FreeDaily < 0 {
		return fmt.Errorf("limits.free_daily 不能为负数")
	}
	switch config.Limits.Store {
	case "database", "memory":
	default:
		return fmt.Errorf("不支持的 limits.store: %s", config.Limits.Store)
	}
	return nil
}

// Validate 对外暴露的配置校验（供命令行和测试使用）
func Validate(config *Config) error {
	return validateConfig(config)
}

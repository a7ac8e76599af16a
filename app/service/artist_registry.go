package service

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"track-forge/app/config"
	"track-forge/app/filewatcher"
	"track-forge/app/logger"
	"track-forge/app/model"
)

// ArtistRegistry 艺术家钱包白名单。
// 名单文件每行一个地址，# 开头为注释；开启 watch 后文件变更会自动重载。
type ArtistRegistry struct {
	path    string
	logger  *logger.Logger
	watcher *filewatcher.FileWatcher

	mu      sync.RWMutex
	wallets map[string]struct{}
}

// NewArtistRegistry 创建白名单，未配置文件时名单为空
func NewArtistRegistry(cfg config.ArtistsConfig, log *logger.Logger) (*ArtistRegistry, error) {
	r := &ArtistRegistry{
		path:    cfg.File,
		logger:  log,
		wallets: make(map[string]struct{}),
	}
	if cfg.File == "" {
		return r, nil
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	if cfg.Watch {
		w, err := filewatcher.NewFileWatcher(cfg.File, func(string) {
			if err := r.Reload(); err != nil {
				r.logger.Warnf("重新加载艺术家名单失败: %v", err)
			}
		}, log)
		if err != nil {
			return nil, err
		}
		r.watcher = w
	}
	return r, nil
}

// Start 启动名单文件监控
func (r *ArtistRegistry) Start() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Start()
}

// Stop 停止监控
func (r *ArtistRegistry) Stop() error {
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Stop()
}

// Reload 从文件重新读取名单，文件不存在时视为空名单
func (r *ArtistRegistry) Reload() error {
	if r.path == "" {
		return nil
	}

	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		r.replace(map[string]struct{}{})
		r.logger.Warnf("艺术家名单文件不存在: %s", r.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("打开艺术家名单失败: %w", err)
	}
	defer f.Close()

	wallets := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if w := model.NormalizeWallet(line); w != "" {
			wallets[w] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取艺术家名单失败: %w", err)
	}

	r.replace(wallets)
	r.logger.Infof("艺术家名单已加载: %d 个钱包", len(wallets))
	return nil
}

func (r *ArtistRegistry) replace(wallets map[string]struct{}) {
	r.mu.Lock()
	r.wallets = wallets
	r.mu.Unlock()
}

// IsArtist 用户标记或名单命中任一即视为艺术家
func (r *ArtistRegistry) IsArtist(wallet string, flagged bool) bool {
	if flagged {
		return true
	}
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.wallets[model.NormalizeWallet(wallet)]
	return ok
}

// count 名单中的钱包数
func (r *ArtistRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

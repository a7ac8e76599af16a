package filewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"track-forge/app/logger"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 合并短时间内的多次写入事件
const DefaultDebounce = 300 * time.Millisecond

// FileWatcher 监控单个文件的变更。
// 监听的是所在目录，编辑器“写临时文件再改名”的保存方式也能触发。
type FileWatcher struct {
	path     string
	onChange func(path string)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *logger.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	watching bool
	mu       sync.Mutex
}

// NewFileWatcher 创建文件监控器
func NewFileWatcher(path string, onChange func(path string), log *logger.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析监控路径失败: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &FileWatcher{
		path:     abs,
		onChange: onChange,
		debounce: DefaultDebounce,
		watcher:  watcher,
		logger:   log,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动文件监控
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.watching {
		return fmt.Errorf("文件监控器[%s]已经在运行", fw.path)
	}

	dir := filepath.Dir(fw.path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("监控目录不存在: %s", dir)
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	fw.watching = true
	fw.wg.Add(1)
	go fw.watchLoop()

	fw.logger.Infof("文件监控器已启动: %s", fw.path)
	return nil
}

// Stop 停止文件监控
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.watching {
		fw.watcher.Close()
		return nil
	}

	close(fw.stopCh)
	fw.watcher.Close()
	fw.wg.Wait()
	fw.watching = false

	fw.logger.Infof("文件监控器已停止: %s", fw.path)
	return nil
}

// watchLoop 监控事件循环
func (fw *FileWatcher) watchLoop() {
	defer fw.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(fw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			fw.logger.Debugf("检测到文件变更: %s", fw.path)
			fw.onChange(fw.path)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Errorf("文件监控器[%s]错误: %v", fw.path, err)

		case <-fw.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// relevant 只关心目标文件的写入、创建、改名和删除
func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != fw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

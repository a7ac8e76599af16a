package service

import (
	"sync"

	"track-forge/app/model"
)

// subscriberBuffer 每个订阅者的缓冲
const subscriberBuffer = 16

// ProgressHub 按运行ID分发进度事件。
//
// 发送不阻塞发布方，缓冲满时丢弃最旧的事件，最新事件一定能送达。
// 终态事件送达后关闭订阅通道并清理该运行的缓存；之后的订阅者应以持久化的运行记录为准。
type ProgressHub struct {
	mu     sync.Mutex
	topics map[string]map[chan model.ProgressEvent]struct{}
	latest map[string]model.ProgressEvent
}

// NewProgressHub 创建进度中心
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		topics: make(map[string]map[chan model.ProgressEvent]struct{}),
		latest: make(map[string]model.ProgressEvent),
	}
}

// Publish 发布进度
func (h *ProgressHub) Publish(ev model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	terminal := ev.State.IsTerminal()
	if terminal {
		delete(h.latest, ev.RunID)
	} else {
		h.latest[ev.RunID] = ev
	}

	for ch := range h.topics[ev.RunID] {
		deliver(ch, ev)
		if terminal {
			close(ch)
		}
	}
	if terminal {
		delete(h.topics, ev.RunID)
	}
}

// deliver 只有持锁的发布方会写通道，腾出一个位置后发送必然成功
func deliver(ch chan model.ProgressEvent, ev model.ProgressEvent) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe 订阅某个运行的进度，返回的 cancel 必须调用。
// 运行结束时通道会被关闭。
func (h *ProgressHub) Subscribe(runID string) (<-chan model.ProgressEvent, func()) {
	ch := make(chan model.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.topics[runID]
	if !ok {
		subs = make(map[chan model.ProgressEvent]struct{})
		h.topics[runID] = subs
	}
	subs[ch] = struct{}{}
	if ev, ok := h.latest[runID]; ok {
		ch <- ev
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.topics[runID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.topics, runID)
				}
			}
		})
	}
	return ch, cancel
}

// Latest 返回某个运行最近一次未结束的进度
func (h *ProgressHub) Latest(runID string) (model.ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.latest[runID]
	return ev, ok
}

// Forget 丢弃未进入终态就放弃的运行缓存
func (h *ProgressHub) Forget(runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.latest, runID)
}

// pending 仍缓存着进度的运行数
func (h *ProgressHub) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.latest)
}

package service

import (
	"testing"

	"track-forge/app/model"
)

func TestProgressHubReplaysLatest(t *testing.T) {
	h := NewProgressHub()
	h.Publish(model.ProgressEvent{RunID: "r1", State: model.StatePolling, Progress: 30})

	ch, cancel := h.Subscribe("r1")
	defer cancel()

	ev := <-ch
	if ev.Progress != 30 {
		t.Fatalf("replayed = %+v", ev)
	}

	h.Publish(model.ProgressEvent{RunID: "r1", State: model.StateDone, Progress: 100})
	if ev := <-ch; ev.State != model.StateDone {
		t.Fatalf("got %+v", ev)
	}

	cancel()
	cancel()
	// 取消订阅后发布不应阻塞
	for i := 0; i < 100; i++ {
		h.Publish(model.ProgressEvent{RunID: "r1", State: model.StatePolling, Progress: 50})
	}
}

func TestProgressHubSlowSubscriberStillGetsTerminalEvent(t *testing.T) {
	h := NewProgressHub()
	ch, cancel := h.Subscribe("r1")
	defer cancel()

	for i := 0; i < 20; i++ {
		h.Publish(model.ProgressEvent{RunID: "r1", State: model.StatePolling, Progress: 15 + i})
	}
	h.Publish(model.ProgressEvent{RunID: "r1", State: model.StateDone, Progress: 100})

	var got []model.ProgressEvent
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) == 0 || len(got) > subscriberBuffer {
		t.Fatalf("received %d events", len(got))
	}
	if last := got[len(got)-1]; last.State != model.StateDone {
		t.Fatalf("last event = %+v, want done", last)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Progress < got[i-1].Progress {
			t.Fatalf("events out of order: %+v", got)
		}
	}
}

func TestProgressHubForgetsFinishedRuns(t *testing.T) {
	h := NewProgressHub()
	for _, id := range []string{"r1", "r2", "r3"} {
		h.Publish(model.ProgressEvent{RunID: id, State: model.StatePolling, Progress: 40})
	}
	if h.pending() != 3 {
		t.Fatalf("pending = %d", h.pending())
	}

	h.Publish(model.ProgressEvent{RunID: "r1", State: model.StateDone, Progress: 100})
	h.Publish(model.ProgressEvent{RunID: "r2", State: model.StateError, Progress: 100})
	h.Forget("r3")

	if h.pending() != 0 {
		t.Fatalf("pending after finish = %d", h.pending())
	}
	if _, ok := h.Latest("r1"); ok {
		t.Fatal("finished run still cached")
	}

	// 结束后的订阅不会收到回放，也不应阻塞
	ch, cancel := h.Subscribe("r1")
	defer cancel()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected replay %+v", ev)
	default:
	}
}

package model

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeTaskStatus(t *testing.T) {
	cases := map[string]TaskStatus{
		"SUCCESS":               TaskSuccess,
		"PENDING":               TaskPending,
		"":                      TaskPending,
		"TEXT_SUCCESS":          TaskProcessing,
		"FIRST_SUCCESS":         TaskProcessing,
		"CREATE_TASK_FAILED":    TaskFailed,
		"GENERATE_AUDIO_FAILED": TaskFailed,
		"CALLBACK_EXCEPTION":    TaskFailed,
		"SENSITIVE_WORD_ERROR":  TaskSensitiveWordError,
		"failed":                TaskFailed,
	}
	for raw, want := range cases {
		if got := NormalizeTaskStatus(raw); got != want {
			t.Errorf("NormalizeTaskStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestGenerationRequestValidate(t *testing.T) {
	if err := (GenerationRequest{Prompt: "a chill lofi beat for studying"}).Validate(); err != nil {
		t.Fatalf("valid prompt rejected: %v", err)
	}
	for _, p := range []string{"", "   ", "short", "123456789"} {
		err := GenerationRequest{Prompt: p}.Validate()
		if !errors.Is(err, ErrValidation) {
			t.Errorf("prompt %q: err = %v, want ErrValidation", p, err)
		}
	}
	if err := (GenerationRequest{Prompt: "a chill lofi beat", VocalType: "robot"}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad vocal type accepted: %v", err)
	}
}

func TestMarkMintedRequiresBothIdentifiersAndIsMonotonic(t *testing.T) {
	tr := &GeneratedTrack{Title: "A"}
	if err := tr.MarkMinted("1", "", time.Now()); err == nil || tr.Minted {
		t.Fatal("partial mint state must be rejected")
	}
	if err := tr.MarkMinted("1", "0xabc", time.Now()); err != nil {
		t.Fatalf("mark minted: %v", err)
	}
	if err := tr.MarkMinted("2", "0xdef", time.Now()); err == nil {
		t.Fatal("second mint must be rejected")
	}
	if !tr.Minted || tr.TokenID != "1" || tr.RecordStatus() != RecordMinted {
		t.Fatalf("unexpected track state: %+v", tr)
	}
}

func TestUsageOnTreatsCorruptRowsAsUnused(t *testing.T) {
	day := "2026-03-01"
	cases := []struct {
		rec  *GenerationLimit
		want int
	}{
		{nil, 0},
		{&GenerationLimit{Date: day, Count: 2}, 2},
		{&GenerationLimit{Date: "2026-02-28", Count: 3}, 0},
		{&GenerationLimit{Date: day, Count: -4}, 0},
		{&GenerationLimit{Date: "garbage", Count: 3}, 0},
	}
	for i, c := range cases {
		if got := c.rec.UsageOn(day); got != c.want {
			t.Errorf("case %d: UsageOn = %d, want %d", i, got, c.want)
		}
	}
}

func TestErrorKindName(t *testing.T) {
	err := NewPipelineError(ErrSensitiveContent, "blocked")
	if !errors.Is(err, ErrSensitiveContent) {
		t.Fatal("errors.Is must match kind")
	}
	if ErrorKindName(err) != "SensitiveContentError" {
		t.Fatalf("kind = %s", ErrorKindName(err))
	}
	if ErrorKindName(errors.New("x")) != "InternalError" {
		t.Fatal("unknown errors map to InternalError")
	}
}

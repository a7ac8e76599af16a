package artwork

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"testing"
)

func TestPlaceholderIsSquarePNG(t *testing.T) {
	data, err := Placeholder("Midnight Study Session", 128)
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "png" || cfg.Width != 128 || cfg.Height != 128 {
		t.Fatalf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestNormalizeCropsToSquareJPEG(t *testing.T) {
	src, err := Placeholder("wide", 64)
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	out, err := Normalize(src, 32)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "jpeg" || cfg.Width != 32 || cfg.Height != 32 {
		t.Fatalf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	if _, err := Normalize([]byte("not an image"), 32); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNormalizeTitle(t *testing.T) {
	// "e" + 组合重音 -> 预组合字符
	got := NormalizeTitle("  Cafe\u0301   Lofi \n Beats ")
	if got != "Caf\u00e9 Lofi Beats" {
		t.Fatalf("NormalizeTitle = %q", got)
	}
}

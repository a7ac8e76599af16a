package service

import (
	"os"
	"path/filepath"
	"testing"

	"track-forge/app/config"
)

func TestArtistRegistryLoadsAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artists.txt")
	content := "# 签约艺术家\n0xAAA0000000000000000000000000000000000001\n\n  0xbbb0000000000000000000000000000000000002  # 备注\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := NewArtistRegistry(config.ArtistsConfig{File: path}, newTestLogger(t))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if r.count() != 2 {
		t.Fatalf("count = %d, want 2", r.count())
	}
	if !r.IsArtist("0xaaa0000000000000000000000000000000000001", false) {
		t.Fatal("listed wallet not recognised")
	}
	if !r.IsArtist("0xBBB0000000000000000000000000000000000002", false) {
		t.Fatal("wallet comparison should ignore case")
	}
	if r.IsArtist(freeWallet, false) {
		t.Fatal("unlisted wallet treated as artist")
	}
	if !r.IsArtist(freeWallet, true) {
		t.Fatal("user flag ignored")
	}

	if err := os.WriteFile(path, []byte("0xccc\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if r.IsArtist("0xaaa0000000000000000000000000000000000001", false) || !r.IsArtist("0xCCC", false) {
		t.Fatal("reload did not replace the allowlist")
	}
}

func TestArtistRegistryMissingFile(t *testing.T) {
	r, err := NewArtistRegistry(config.ArtistsConfig{File: filepath.Join(t.TempDir(), "missing.txt")}, newTestLogger(t))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if r.count() != 0 {
		t.Fatal("missing file should yield an empty allowlist")
	}

	var nilRegistry *ArtistRegistry
	if nilRegistry.IsArtist(freeWallet, false) {
		t.Fatal("nil registry")
	}
}

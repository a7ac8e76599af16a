package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword("correct horse", hash) {
		t.Fatal("password should verify")
	}
	if VerifyPassword("wrong horse", hash) {
		t.Fatal("wrong password verified")
	}
}

func TestHashPasswordRejectsLength(t *testing.T) {
	for _, pw := range []string{"", "12345", strings.Repeat("a", 73)} {
		if _, err := HashPassword(pw); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("HashPassword(%d bytes) err = %v", len(pw), err)
		}
	}
	if err := CheckPassword("密码六个字符"); err != nil {
		t.Errorf("six runes rejected: %v", err)
	}
}

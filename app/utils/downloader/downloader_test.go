package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio-bytes"))
	}))
	defer srv.Close()

	f := New(nil)
	defer f.Close()

	res, err := f.Fetch(context.Background(), srv.URL+"/a.mp3")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(res.Data) != "ID3-audio-bytes" {
		t.Fatalf("data = %q", res.Data)
	}
	if res.ContentType != "audio/mpeg" {
		t.Fatalf("content type = %q", res.ContentType)
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(nil)
	defer f.Close()

	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty url")
	}
}

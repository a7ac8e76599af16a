package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"track-forge/app/config"
	"track-forge/app/model"
)

// 记录过的上游响应样本
var uploadFixtures = []struct {
	name string
	body string
	want string
	ok   bool
}{
	{"pinata", `{"IpfsHash":"QmPinata","PinSize":1234,"Timestamp":"2024-01-01T00:00:00Z"}`, "QmPinata", true},
	{"camel", `{"ipfsHash":"QmCamel"}`, "QmCamel", true},
	{"hash-upper", `{"Name":"a.mp3","Hash":"QmUpper","Size":"42"}`, "QmUpper", true},
	{"hash-lower", `{"hash":"bafyLower"}`, "bafyLower", true},
	{"nested", `{"data":{"cid":"x","hash":"bafyNested"}}`, "bafyNested", true},
	{"precedence", `{"hash":"second","IpfsHash":"first"}`, "first", true},
	{"empty-value", `{"IpfsHash":"  ","hash":"fallback"}`, "fallback", true},
	{"wrong-type", `{"IpfsHash":123}`, "", false},
	{"missing", `{"status":"ok"}`, "", false},
}

func TestNormalizeUploadResponseFixtures(t *testing.T) {
	for _, f := range uploadFixtures {
		t.Run(f.name, func(t *testing.T) {
			var body map[string]any
			if err := json.Unmarshal([]byte(f.body), &body); err != nil {
				t.Fatalf("fixture: %v", err)
			}
			got, ok := NormalizeUploadResponse(body)
			if got != f.want || ok != f.ok {
				t.Fatalf("got (%q, %v), want (%q, %v)", got, ok, f.want, f.ok)
			}
		})
	}
	if _, ok := NormalizeUploadResponse(nil); ok {
		t.Fatal("nil body must not yield an identifier")
	}
}

func TestUploadReturnsContentIDAndGatewayURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pinFilePath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("file part: %v", err)
		}
		_, _ = w.Write([]byte(`{"Hash":"QmAudio"}`))
	}))
	defer srv.Close()

	c := New(config.ContentStoreConfig{BaseURL: srv.URL, GatewayURL: "https://gw.example/ipfs/"})
	defer c.Close()

	res, err := c.Upload(context.Background(), "a.mp3", []byte("ID3 audio"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.ContentID != "QmAudio" || res.GatewayURL != "https://gw.example/ipfs/QmAudio" {
		t.Fatalf("result = %+v", res)
	}
}

func TestUploadFailsWithoutContentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(config.ContentStoreConfig{BaseURL: srv.URL})
	defer c.Close()

	if _, err := c.UploadJSON(context.Background(), "meta.json", map[string]string{"name": "A"}); !errors.Is(err, model.ErrUpload) {
		t.Fatalf("err = %v, want ErrUpload", err)
	}
}

func TestUploadFailsWhenStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(config.ContentStoreConfig{BaseURL: url})
	defer c.Close()

	if _, err := c.Upload(context.Background(), "a.mp3", []byte("x")); !errors.Is(err, model.ErrUpload) {
		t.Fatalf("err = %v, want ErrUpload", err)
	}
	if _, err := c.Upload(context.Background(), "empty", nil); !errors.Is(err, model.ErrUpload) {
		t.Fatalf("empty payload err = %v", err)
	}
}

func TestGatewayURLIsPure(t *testing.T) {
	c := New(config.ContentStoreConfig{GatewayURL: "https://gw/ipfs"})
	if got := c.GatewayURL("Qm1"); got != "https://gw/ipfs/Qm1" {
		t.Fatalf("GatewayURL = %q", got)
	}
	if c.GatewayURL("") != "" {
		t.Fatal("empty id yields empty url")
	}
}

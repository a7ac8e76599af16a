package minter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"track-forge/app/config"
	"track-forge/app/model"
)

func TestMintSendsMetadataAndParsesNumericTokenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["contract"] != "0xContract" || body["audioContentId"] != "QmAudio" || body["to"] != "0xwallet" {
			t.Errorf("unexpected body: %v", body)
		}
		if r.Header.Get("X-API-Key") != "k" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`{"success":true,"tokenId":42,"txHash":"0xabc"}`))
	}))
	defer srv.Close()

	c := New(config.MintConfig{BaseURL: srv.URL, APIKey: "k", Contract: "0xContract"})
	defer c.Close()

	res, err := c.Mint(context.Background(), model.MintMetadata{To: "0xwallet", AudioContentID: "QmAudio"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !res.Complete() || res.TokenID != "42" || res.TxHash != "0xabc" {
		t.Fatalf("result = %+v", res)
	}
}

func TestMintReportsRelayerFailureInResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":"nonce too low"}`))
	}))
	defer srv.Close()

	c := New(config.MintConfig{BaseURL: srv.URL})
	defer c.Close()

	res, err := c.Mint(context.Background(), model.MintMetadata{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if res.Success || res.Error != "nonce too low" {
		t.Fatalf("result = %+v", res)
	}
}

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	var out struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"7","b":12345678901234567890,"c":null}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.A != "7" || out.B != "12345678901234567890" || out.C != "" {
		t.Fatalf("got %+v", out)
	}
}

package huggingface

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/menta2k/mri-highlighter/pkg/response"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

func TestInferSendsImageAndPrompt(t *testing.T) {
	var gotAuth string
	var gotBody request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text": "Tumor at (10, 20) to (30, 40)"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "hf_secret")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	payload, err := c.Infer(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "find the tumor")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	if gotAuth != "Bearer hf_secret" {
		t.Errorf("Unexpected Authorization header %q", gotAuth)
	}
	if gotBody.Inputs.Text != "find the tumor" {
		t.Errorf("Unexpected prompt %q", gotBody.Inputs.Text)
	}
	if gotBody.Inputs.Image != base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("Unexpected image encoding %q", gotBody.Inputs.Image)
	}

	text, ok := response.Normalize(payload)
	if !ok || text != "Tumor at (10, 20) to (30, 40)" {
		t.Errorf("Unexpected normalized payload (%q, %v)", text, ok)
	}
}

func TestInferErrorStatusKeepsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "Model is currently loading", "estimated_time": 42.5}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	payload, err := c.Infer(context.Background(), []byte("img"), "p")
	if err != nil {
		t.Fatalf("Infer should report service errors as payloads: %v", err)
	}
	if payload.Kind != types.PayloadError {
		t.Fatalf("Expected error payload, got %v", payload.Kind)
	}
	if payload.Status != http.StatusServiceUnavailable || payload.Error != "Model is currently loading" {
		t.Errorf("Unexpected error payload %+v", payload)
	}
}

func TestInferErrorStatusWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	payload, err := c.Infer(context.Background(), []byte("img"), "p")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}

	_, err = response.Text(payload)
	var upstream *types.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("Expected upstream error, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", upstream.StatusCode)
	}
}

func TestInferTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, _ := NewClient(url, "")
	_, err := c.Infer(context.Background(), []byte("img"), "p")
	var upstream *types.UpstreamError
	if !errors.As(err, &upstream) {
		t.Errorf("Expected *UpstreamError for a closed server, got %v", err)
	}
}

func TestCustomTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": "(1, 2) (3, 4)"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "")
	c.SetTextField("answer")
	payload, err := c.Infer(context.Background(), nil, "p")
	if err != nil {
		t.Fatalf("Infer failed: %v", err)
	}
	if text, _ := response.Normalize(payload); text != "(1, 2) (3, 4)" {
		t.Errorf("Expected text from custom field, got %q", text)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("ftp://example.com", ""); err == nil {
		t.Error("Expected error for non-http URL")
	}

	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("Empty URL should use the default: %v", err)
	}
	if c.url != DefaultURL {
		t.Errorf("Expected default URL, got %s", c.url)
	}
}

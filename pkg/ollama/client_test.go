package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientInvalidURL(t *testing.T) {
	if _, err := NewClient("localhost"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestLocateLandmarks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Expected /api/chat, got %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req["model"] != "minicpm-v4.5" {
			t.Errorf("Expected model forwarded, got %v", req["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "minicpm-v4.5",
			"message": map[string]any{
				"role":    "assistant",
				"content": `{"landmarks":[{"label":"circle","confidence":0.95,"box":{"x":0.1,"y":0.1,"w":0.8,"h":0.8}},{"label":"hours","confidence":0.7,"box":{"x":0.6,"y":0.45,"w":0.05,"h":0.05}},],}`,
			},
			"done": true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	res, err := c.LocateLandmarks(context.Background(), "minicpm-v4.5", "find", "aGVsbG8=")
	if err != nil {
		t.Fatalf("LocateLandmarks failed: %v", err)
	}
	if len(res.Landmarks) != 2 {
		t.Errorf("Expected 2 landmarks, got %d", len(res.Landmarks))
	}
}

func TestBadBase64(t *testing.T) {
	c, _ := NewClient("http://127.0.0.1:1")
	if _, err := c.SimpleQuery(context.Background(), "m", "p", "%%%"); err == nil {
		t.Error("Expected base64 decode error")
	}
}

func TestModelOptions(t *testing.T) {
	opts := modelOptions("openbmb/minicpm-v4.5")
	if opts["num_ctx"] != 4096 {
		t.Errorf("Expected num_ctx for MiniCPM-V 4, got %v", opts["num_ctx"])
	}
	if _, ok := modelOptions("llava")["num_ctx"]; ok {
		t.Error("Expected no num_ctx for other models")
	}
}

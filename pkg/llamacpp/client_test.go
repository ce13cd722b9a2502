package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLocateLandmarks(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Expected chat completions path, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		answer := "```json\n{\"landmarks\":[{\"label\":\"12\",\"confidence\":0.9,\"box\":{\"x\":0.45,\"y\":0.05,\"w\":0.1,\"h\":0.1}}]}\n```"
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": answer}}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	res, err := c.LocateLandmarks(context.Background(), "qwen2.5-vl", "find landmarks", "aGVsbG8=")
	if err != nil {
		t.Fatalf("LocateLandmarks failed: %v", err)
	}
	if len(res.Landmarks) != 1 || res.Landmarks[0].Label != "12" {
		t.Errorf("Expected one 12 landmark, got %+v", res.Landmarks)
	}
	if got.Model != "qwen2.5-vl" || got.Stream {
		t.Errorf("Expected non-streaming request for model, got %+v", got)
	}

	parts, ok := got.Messages[0].Content.([]interface{})
	if !ok || len(parts) != 2 {
		t.Fatalf("Expected text and image parts, got %v", got.Messages[0].Content)
	}
	img := parts[1].(map[string]interface{})["image_url"].(map[string]interface{})["url"].(string)
	if !strings.HasPrefix(img, "data:image/jpeg;base64,") {
		t.Errorf("Expected data URI, got %q", img)
	}
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "hi", ""); err == nil {
		t.Error("Expected error for 503 response")
	}
}

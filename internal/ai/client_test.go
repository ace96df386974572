package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func sseServer(t *testing.T, frames []string, onRequest func(body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if onRequest != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			onRequest(body)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
}

func drain(t *testing.T, deltas <-chan Delta, errs <-chan error) ([]Delta, error) {
	t.Helper()
	var out []Delta
	for d := range deltas {
		out = append(out, d)
	}
	return out, <-errs
}

func TestStreamChat(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"你"}}]}`,
		`{"choices":[{"delta":{"content":"好"}}]}`,
		`{"choices":[{"delta":{"reasoning_content":"thinking"}}]}`,
		`{"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":7}}`,
	}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	deltas, errs := client.StreamChat(context.Background(), ChatStreamRequest{
		Model:    "qwen-plus",
		Messages: []Message{UserText("hi")},
	})

	got, err := drain(t, deltas, errs)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("deltas = %d, want 4", len(got))
	}
	if got[0].Content != "你" || got[1].Content != "好" {
		t.Fatalf("content deltas = %+v", got[:2])
	}
	if got[2].Reasoning != "thinking" {
		t.Fatalf("reasoning delta = %+v", got[2])
	}
	last := got[len(got)-1]
	if last.Usage == nil || last.Usage.PromptTokens != 12 || last.Usage.CompletionTokens != 7 {
		t.Fatalf("usage = %+v", last.Usage)
	}
}

func TestStreamChat_RequestShape(t *testing.T) {
	var captured map[string]any
	srv := sseServer(t, []string{`{"choices":[{"delta":{"content":"ok"}}]}`}, func(body map[string]any) {
		captured = body
	})
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	deltas, errs := client.StreamChat(context.Background(), ChatStreamRequest{
		Model:          "qwen-plus",
		Messages:       []Message{UserText("hi")},
		Temperature:    0.7,
		MaxTokens:      2000,
		EnableThinking: true,
		EnableSearch:   true,
	})
	if _, err := drain(t, deltas, errs); err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if captured["stream"] != true {
		t.Fatalf("stream = %v", captured["stream"])
	}
	opts, _ := captured["stream_options"].(map[string]any)
	if opts == nil || opts["include_usage"] != true {
		t.Fatalf("stream_options = %v", captured["stream_options"])
	}
	if captured["enable_thinking"] != true || captured["enable_search"] != true {
		t.Fatalf("thinking/search flags = %v/%v", captured["enable_thinking"], captured["enable_search"])
	}
	if captured["temperature"] != 0.7 || captured["max_tokens"] != float64(2000) {
		t.Fatalf("sampling params = %v/%v", captured["temperature"], captured["max_tokens"])
	}
}

func TestStreamChat_ProviderError(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"delta":{"content":"部分"}}]}`,
		`{"error":{"message":"rate limited"}}`,
	}, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	deltas, errs := client.StreamChat(context.Background(), ChatStreamRequest{
		Model:    "qwen-plus",
		Messages: []Message{UserText("hi")},
	})
	got, err := drain(t, deltas, errs)
	if err == nil || err.Error() != "rate limited" {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("deltas before error = %d, want 1", len(got))
	}
}

func TestStreamChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key")
	deltas, errs := client.StreamChat(context.Background(), ChatStreamRequest{
		Model:    "qwen-plus",
		Messages: []Message{UserText("hi")},
	})
	if _, err := drain(t, deltas, errs); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestStreamChat_MissingAPIKey(t *testing.T) {
	client := NewClient("http://localhost:0", "")
	deltas, errs := client.StreamChat(context.Background(), ChatStreamRequest{Model: "m"})
	if _, err := drain(t, deltas, errs); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("purpose"); got != "file-extract" {
			t.Errorf("purpose = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "file-abc123"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("document body"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := NewClient(srv.URL, "test-key")
	id, err := client.UploadFile(context.Background(), path, "file-extract")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "file-abc123" {
		t.Fatalf("id = %q", id)
	}
}

func TestUploadFile_MissingLocalFile(t *testing.T) {
	client := NewClient("http://localhost:0", "test-key")
	if _, err := client.UploadFile(context.Background(), "/nonexistent/file.pdf", "file-extract"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

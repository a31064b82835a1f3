package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/option"
)

func newTestGemini(t *testing.T, status int, body string) (*Gemini, *http.Request) {
	t.Helper()
	var captured http.Request
	var capturedBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r
		capturedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), "test-key", "", 0,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	t.Cleanup(func() {
		if captured.URL != nil && !strings.HasSuffix(captured.URL.Path, "models/"+DefaultGeminiModel+":generateContent") {
			t.Errorf("unexpected path %q", captured.URL.Path)
		}
		if len(capturedBody) > 0 {
			var req map[string]any
			if err := json.Unmarshal(capturedBody, &req); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			} else if _, ok := req["systemInstruction"]; !ok {
				t.Errorf("system instruction missing from request: %s", capturedBody)
			}
		}
	})
	return g, &captured
}

func TestGeminiComplete(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind Kind
	}{
		{
			name:   "text answer",
			status: http.StatusOK,
			body:   `{"candidates":[{"content":{"role":"model","parts":[{"text":"### Panorama Geral\n"},{"text":"Tudo certo."}]},"finishReason":"STOP"}]}`,
			want:   "### Panorama Geral\nTudo certo.",
		},
		{
			name:     "prompt blocked",
			status:   http.StatusOK,
			body:     `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantKind: KindBlocked,
		},
		{
			name:     "candidate blocked",
			status:   http.StatusOK,
			body:     `{"candidates":[{"finishReason":"SAFETY"}]}`,
			wantKind: KindBlocked,
		},
		{
			name:     "no candidates",
			status:   http.StatusOK,
			body:     `{"candidates":[]}`,
			wantKind: KindEmpty,
		},
		{
			name:     "blank text",
			status:   http.StatusOK,
			body:     `{"candidates":[{"content":{"parts":[{"text":"  "}]},"finishReason":"MAX_TOKENS"}]}`,
			wantKind: KindEmpty,
		},
		{
			name:     "api error",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"API key not valid"}}`,
			wantKind: KindTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGemini(t, tt.status, tt.body)
			got, err := g.Complete(context.Background(), Request{System: SystemInstruction, Prompt: "p", Temperature: DefaultTemperature})
			if tt.wantKind != "" {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("got err %v (kind %q), want kind %q", err, KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), " ", "", 0); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"response":"### Panorama Geral\nok","done":true}`)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/", "llama-test", time.Second, nil)
	text, err := o.Complete(context.Background(), Request{System: "sys", Prompt: "hello", Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "### Panorama Geral\nok" {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "llama-test" || got.Prompt != "hello" || got.System != "sys" || got.Stream {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Options.Temperature != 0.7 {
		t.Fatalf("temperature = %v", got.Options.Temperature)
	}
}

func TestOllamaFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}, ErrTransport},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{`)
		}, ErrTransport},
		{"empty", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"response":"","done":true}`)
		}, ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewOllama(srv.URL, "", 0, nil).Complete(context.Background(), Request{Prompt: "x"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	// Nothing listening.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewOllama(url, "", time.Second, nil).Complete(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("closed server: got %v", err)
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("analyze: %w", blocked("gemini", "SAFETY"))
	if !errors.Is(err, ErrBlocked) {
		t.Fatal("wrapped blocked error should match ErrBlocked")
	}
	if errors.Is(err, ErrEmpty) || errors.Is(err, ErrTransport) {
		t.Fatal("blocked error matched another kind")
	}
	if KindOf(errors.New("other")) != "" {
		t.Fatal("plain error should have no kind")
	}
	cause := context.DeadlineExceeded
	if !errors.Is(transport("gemini", cause), context.DeadlineExceeded) {
		t.Fatal("transport error should unwrap to its cause")
	}
	if msg := blocked("gemini", "SAFETY").Error(); msg != "gemini: completion blocked (SAFETY)" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestStatic(t *testing.T) {
	text, err := Static{}.Complete(context.Background(), Request{})
	if err != nil || text != StaticDiagnosis {
		t.Fatalf("Static.Complete = %q, %v", text, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Static{}).Complete(ctx, Request{}); !errors.Is(err, ErrTransport) {
		t.Fatalf("cancelled context: got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(context.Background(), Config{Provider: "static"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(Static); !ok {
		t.Fatalf("got %T, want Static", c)
	}
	c, err = New(context.Background(), Config{Provider: "ollama"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*Ollama); !ok {
		t.Fatalf("got %T, want *Ollama", c)
	}
	if _, err := New(context.Background(), Config{Provider: "gpt"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := New(context.Background(), Config{Provider: "gemini"}); err == nil {
		t.Fatal("expected error for gemini without key")
	}
}

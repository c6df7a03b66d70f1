package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

func testServerSequence(t *testing.T, statuses []int, headers []http.Header, bodyOK any) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		st := statuses[i]
		if headers != nil && i < len(headers) && headers[i] != nil {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		if st >= 200 && st < 300 {
			w.WriteHeader(st)
			_ = json.NewEncoder(w).Encode(bodyOK)
			return
		}
		w.WriteHeader(st)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited"}})
	}))
	return srv, &idx
}

func userReq(model string) GenerateRequest {
	return GenerateRequest{Model: model, Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 1}
}

func TestGenerateSendsChatShape(t *testing.T) {
	var got GenerateRequest
	var auth, title string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Request-Id", "req_ok")
		_ = json.NewEncoder(w).Encode(GenerateResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}},
			Usage:   Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		})
	}))
	defer srv.Close()

	c := NewClient(ProviderOpenAI, "sk-test", srv.URL+"/", 2*time.Second)
	req := GenerateRequest{
		Model:       "gpt-4o",
		Messages:    []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "q"}},
		MaxTokens:   2048,
		Temperature: 1.0,
	}
	resp, err := c.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Text() != "ok" || resp.RequestID != "req_ok" || resp.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", auth)
	}
	if title != "" {
		t.Fatalf("openai requests should not carry OpenRouter headers, got X-Title=%q", title)
	}
	if got.Model != "gpt-4o" || got.MaxTokens != 2048 || got.Temperature != 1.0 || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestOpenRouterHeaders(t *testing.T) {
	var referer, title string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		_ = json.NewEncoder(w).Encode(GenerateResponse{Choices: []Choice{{Message: Message{Content: "ok"}}}})
	}))
	defer srv.Close()

	c := NewClient(ProviderOpenRouter, "or-test", srv.URL, 2*time.Second)
	if _, err := c.Generate(context.Background(), userReq("openai/gpt-4o")); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if referer == "" || title == "" {
		t.Fatalf("expected OpenRouter attribution headers, got referer=%q title=%q", referer, title)
	}
}

func TestGenerateDoesNotRetryOn429(t *testing.T) {
	okBody := GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: "ok"}}}}
	srv, hits := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"7"}}, {}}, okBody)
	defer srv.Close()

	c := NewClient(ProviderOpenAI, "test", srv.URL, 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Generate(ctx, userReq("test-model"))
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 7*time.Second {
		t.Fatalf("retry after = %v", rl.RetryAfter)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("expected a single attempt, server saw %d", n)
	}
}

func TestClassifyAPIError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]any
		check  func(error) bool
	}{
		{"auth", 401, map[string]any{"error": map[string]any{"message": "invalid key"}}, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{"quota", 429, map[string]any{"error": map[string]any{"message": "You exceeded your quota", "code": "insufficient_quota"}}, func(err error) bool { var e *QuotaExceededError; return errors.As(err, &e) }},
		{"model", 404, map[string]any{"error": map[string]any{"message": "The model does not exist", "code": "model_not_found"}}, func(err error) bool { var e *ModelNotFoundError; return errors.As(err, &e) }},
		{"server", 503, map[string]any{"error": "overloaded"}, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.body)
			}))
			defer srv.Close()
			c := NewClient(ProviderOpenAI, "test", srv.URL, 2*time.Second)
			_, err := c.Generate(context.Background(), userReq("gpt-4o"))
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error type: %T %v", err, err)
			}
		})
	}
}

func TestErrorIncludesRequestID(t *testing.T) {
	// Server returns 400 with X-Request-Id header
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Request-Id", "req_test_123")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad req", "code": "bad_request"}})
	}))
	defer srv.Close()

	c := NewClient(ProviderOpenAI, "test", srv.URL, 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Generate(ctx, userReq("test-model"))
	if err == nil {
		t.Fatalf("expected error")
	}
	var br *BadRequestError
	if !errors.As(err, &br) {
		t.Fatalf("expected BadRequestError, got %T", err)
	}
	if !strings.Contains(err.Error(), "req_test_123") {
		t.Fatalf("expected request id in error, got: %v", err)
	}
}

func TestGenerateMissingKey(t *testing.T) {
	c := NewClient(ProviderOpenRouter, "", "", time.Second)
	_, err := c.Generate(context.Background(), userReq("openai/gpt-4o"))
	if err == nil || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("expected missing key error naming OPENROUTER_API_KEY, got %v", err)
	}
}

func TestGenerateUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewClient(ProviderOpenAI, "test", "http://"+addr, time.Second)
	_, err = c.Generate(context.Background(), userReq("gpt-4o"))
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T %v", err, err)
	}
}

func TestStreamParsesDeltas(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		// Send two delta events then DONE
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hello \"}}]}\n\n")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"world\"}}]}\n\n")
		fmt.Fprintf(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(ProviderOpenRouter, "test", srv.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var out string
	err := c.GenerateStream(ctx, GenerateRequest{Model: "test", Messages: []Message{{Role: "user", Content: "hi"}}}, func(d string) { out += d })
	if err != nil {
		t.Fatalf("GenerateStream error: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("unexpected stream accumulation: %q", out)
	}
}

func TestRegistryProviders(t *testing.T) {
	want := []string{ProviderAnthropic, ProviderOllama, ProviderOpenAI, ProviderOpenRouter}
	got := Providers()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("providers = %v, want %v", got, want)
	}
	if _, ok := GetRuntime("gemini", RuntimeConfig{}); ok {
		t.Fatalf("unexpected runtime for unregistered provider")
	}
	rt, ok := GetRuntime(ProviderOllama, RuntimeConfig{BaseURL: "http://10.0.0.2:11434/"})
	if !ok {
		t.Fatalf("ollama runtime not registered")
	}
	if oc, ok := rt.(*OllamaClient); !ok || oc.host != "http://10.0.0.2:11434" {
		t.Fatalf("unexpected ollama runtime: %#v", rt)
	}
}

func TestModelCatalog(t *testing.T) {
	if m, ok := DefaultModel(ProviderOpenAI); !ok || m != "gpt-4o" {
		t.Fatalf("default openai model = %q", m)
	}
	cost, ok := EstimateCostUSD("gpt-4o", 1000, 1000)
	if !ok || cost <= 0 {
		t.Fatalf("cost = %v, %v", cost, ok)
	}
	if _, over := ExceedsContext("llama3.1:8b", 7000, 2048); !over {
		t.Fatalf("expected llama3.1:8b budget to overflow")
	}
	if _, over := ExceedsContext("unknown-model", 1<<30, 0); over {
		t.Fatalf("unknown models should never overflow")
	}
}

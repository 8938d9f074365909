package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmarchetti/vera/internal/chat"
	"github.com/dmarchetti/vera/internal/config"
	"github.com/dmarchetti/vera/internal/observability"
	"github.com/dmarchetti/vera/internal/profile"
	"github.com/dmarchetti/vera/internal/transcript"
	"github.com/dmarchetti/vera/internal/upstream"
)

func newTestServer(t *testing.T, cfg config.Config, gen upstream.Generator) *httptest.Server {
	t.Helper()
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	profiles := profile.NewInMemoryStore()
	var invoker *upstream.Invoker
	if gen != nil {
		invoker = upstream.NewInvoker(gen, 1, time.Millisecond, time.Second)
	}
	orch := chat.New(transcript.NewInMemoryStore(), profiles, invoker, "", nil, metrics)
	srv := New(cfg, orch, profiles, nil)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, owner string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()

	var parsed map[string]any
	_ = json.NewDecoder(res.Body).Decode(&parsed)
	return res, parsed
}

func mockCfg() config.Config {
	return config.Config{UpstreamProvider: "mock"}
}

func TestRoutesRequireOwnerIdentity(t *testing.T) {
	ts := newTestServer(t, mockCfg(), upstream.NewMockGenerator())

	res, parsed := doJSON(t, http.MethodGet, ts.URL+"/v1/chat/history", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
	if parsed["code"] != "unauthenticated" {
		t.Fatalf("code = %v, want unauthenticated", parsed["code"])
	}
}

func TestChatRoundTrip(t *testing.T) {
	gen := upstream.NewMockGenerator(upstream.MockStep{Text: "Practice daily!"})
	ts := newTestServer(t, mockCfg(), gen)

	res, _ := doJSON(t, http.MethodPut, ts.URL+"/v1/profile", "u1",
		map[string]any{"display_name": "Ann"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put profile status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	res, parsed := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", "u1",
		map[string]string{"message": "How do I prepare for interviews?"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send message status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if parsed["reply"] != "Practice daily!" {
		t.Fatalf("reply = %v, want %q", parsed["reply"], "Practice daily!")
	}

	res, parsed = doJSON(t, http.MethodGet, ts.URL+"/v1/chat/history", "u1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	turns, _ := parsed["turns"].([]any)
	if len(turns) != 2 {
		t.Fatalf("history turns = %d, want 2", len(turns))
	}

	res, _ = doJSON(t, http.MethodDelete, ts.URL+"/v1/chat", "u1", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}

	res, parsed = doJSON(t, http.MethodGet, ts.URL+"/v1/chat/history", "u1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history-after-reset status = %d", res.StatusCode)
	}
	turns, _ = parsed["turns"].([]any)
	if len(turns) != 0 {
		t.Fatalf("turns after reset = %d, want 0", len(turns))
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	ts := newTestServer(t, mockCfg(), upstream.NewMockGenerator())

	res, parsed := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", "u1",
		map[string]string{"message": ""})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	if parsed["code"] != "invalid_message" {
		t.Fatalf("code = %v, want invalid_message", parsed["code"])
	}
}

func TestSendMessageUnconfiguredUpstream(t *testing.T) {
	ts := newTestServer(t, config.Config{UpstreamProvider: "gemini"}, nil)

	res, parsed := doJSON(t, http.MethodPost, ts.URL+"/v1/chat/message", "u1",
		map[string]string{"message": "hello"})
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}
	if parsed["code"] != "not_configured" {
		t.Fatalf("code = %v, want not_configured", parsed["code"])
	}
}

func TestReadyzReflectsUpstreamConfiguration(t *testing.T) {
	ts := newTestServer(t, config.Config{UpstreamProvider: "gemini"}, nil)
	res, _ := doJSON(t, http.MethodGet, ts.URL+"/readyz", "", nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want %d", res.StatusCode, http.StatusServiceUnavailable)
	}

	ts2 := newTestServer(t, mockCfg(), upstream.NewMockGenerator())
	res, _ = doJSON(t, http.MethodGet, ts2.URL+"/readyz", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	ts := newTestServer(t, mockCfg(), upstream.NewMockGenerator())
	res, parsed := doJSON(t, http.MethodGet, ts.URL+"/v1/profile", "u1", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	if parsed["code"] != "profile_not_found" {
		t.Fatalf("code = %v, want profile_not_found", parsed["code"])
	}
}

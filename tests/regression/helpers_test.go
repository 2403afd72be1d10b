package regression_test

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultTestURL = "http://localhost:8080"

// testServer wraps the base URL for a running thlocate server.
type testServer struct {
	baseURL string
	client  *http.Client
}

// newTestServer returns a testServer pointing at the URL in THLOCATE_TEST_URL
// (default: http://localhost:8080). If the server is unreachable the test is
// skipped with a clear message.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	base := os.Getenv("THLOCATE_TEST_URL")
	if base == "" {
		base = defaultTestURL
	}
	ts := &testServer{
		baseURL: base,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	// Verify the server is reachable.
	resp, err := ts.client.Get(base + "/api/status")
	if err != nil {
		t.Skipf("thlocate server not reachable at %s: %v", base, err)
	}
	resp.Body.Close()
	return ts
}

// get performs a GET request to path and returns the response.
func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// post performs a bodiless POST request to path.
func (ts *testServer) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Post(ts.baseURL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// requireStatus fails the test if the response status code != want.
func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d\nbody: %s", want, resp.StatusCode, body)
	}
}

// decodeJSON decodes the response body into v, failing the test on error.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireContentType fails if the Content-Type header doesn't contain want.
func requireContentType(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		t.Fatalf("missing Content-Type header, expected %q", want)
	}
	// Check prefix only (ignores "; charset=utf-8" suffix)
	if len(ct) < len(want) || ct[:len(want)] != want {
		t.Fatalf("Content-Type: got %q, want prefix %q", ct, want)
	}
}

// waitIdle polls /api/status until no scan is active.
func (ts *testServer) waitIdle(t *testing.T, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var body struct {
			ActiveScan interface{} `json:"active_scan"`
		}
		decodeJSON(t, ts.get(t, "/api/status"), &body)
		if body.ActiveScan == nil {
			return
		}
		time.Sleep(2 * time.Second)
	}
	t.Fatal("scan did not complete within timeout")
}

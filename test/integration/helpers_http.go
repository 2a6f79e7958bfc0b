package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"
)

// httpClient is a shared HTTP client with timeout.
var httpClient = &http.Client{Timeout: 5 * time.Second}

// drainClose fully reads and closes a response body.
// This is critical for HTTP connection reuse: Go's transport only reuses
// connections when the body is fully consumed before Close().
func drainClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}

// waitHealthy polls GET /health until the node answers 200.
func waitHealthy(t *testing.T, node *Node, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// A set ProcessState means the process already exited.
		if node.cmd.ProcessState != nil {
			break
		}

		resp, err := httpClient.Get("http://" + node.httpAddr + "/health")
		if err == nil {
			ok := resp.StatusCode == http.StatusOK
			drainClose(resp.Body)

			if ok {
				return
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("node did not become healthy:\nSTDOUT:\n%s\nSTDERR:\n%s",
		node.stdout.String(), node.stderr.String())
}

// postJSON posts a JSON body to a node and returns the status code and
// the node's error message, if any.
func postJSON(t *testing.T, addr, path string, body any) (int, string) {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := httpClient.Post("http://"+addr+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer drainClose(resp.Body)

	var payload struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&payload)

	return resp.StatusCode, payload.Error
}

package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// errNotFound marks a 404 response so callers can report explicit
// existence instead of an opaque status error.
var errNotFound = errors.New("not found")

// httpGet performs a GET request and decodes the JSON response.
func httpGet(url string, result any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("GET %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// httpGetBytes performs a GET request and returns the raw response body.
func httpGetBytes(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// httpPostJSON performs a POST request with a JSON body and decodes the
// JSON response. Failed requests carry the node's error message.
func httpPostJSON(url string, body any, result any) error {
	jsonBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body:\n%w", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(jsonBytes))
	if err != nil {
		return fmt.Errorf("POST %s:\n%w", url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d: %s", url, resp.StatusCode, readAPIError(resp.Body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// readAPIError extracts the error message from a JSON error body.
func readAPIError(body io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}

	if err := json.NewDecoder(body).Decode(&e); err != nil || e.Error == "" {
		return "unknown error"
	}

	return e.Error
}

// Package testutil holds small helpers shared by handler and service
// tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// NewTestRequest builds a plain *http.Request for handler tests.
func NewTestRequest(method, target string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, target, body)
}

// NewTestRequestWithJSON marshals payload and builds a request with the
// JSON content type set.
func NewTestRequestWithJSON(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling request payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ParseJSONResponse decodes a JSON object body, failing the test on
// malformed JSON.
func ParseJSONResponse(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("parsing JSON response: %v (body %q)", err, body)
	}
	return parsed
}

// AssertStatusCode fails the test when the recorded status differs.
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d (body %s)", want, rr.Code, rr.Body.String())
	}
}

// AssertJSONContains fails the test unless body decodes to an object
// whose key holds want.
func AssertJSONContains(t *testing.T, body []byte, key string, want any) {
	t.Helper()
	parsed := ParseJSONResponse(t, body)
	got, ok := parsed[key]
	if !ok {
		t.Fatalf("expected key %q in response %q", key, body)
	}
	if got != want {
		t.Fatalf("expected %q=%v, got %v", key, want, got)
	}
}

// RandomUUID returns a fresh v4 UUID.
func RandomUUID() uuid.UUID {
	return uuid.New()
}

// RandomEmail returns a unique email address for registration tests.
func RandomEmail() string {
	return fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8])
}

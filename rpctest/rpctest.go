// Package rpctest provides testing helpers for code that calls services through
// httprpc: a recording Doer, a router-backed test server and assertion helpers.
package rpctest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/broady/httprpc"
)

// Responder produces the response for a recorded request.
type Responder func(r *http.Request) (*http.Response, error)

// Recorded is a request captured by a Recorder. Body holds the buffered
// request body.
type Recorded struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Recorder is an httprpc.Doer that records every request and answers through
// a Responder. The zero value answers 204 No Content. It is safe for
// concurrent use.
type Recorder struct {
	// Respond answers requests. Nil means NoContent().
	Respond Responder

	mu       sync.Mutex
	requests []Recorded
}

var _ httprpc.Doer = (*Recorder)(nil)

// NewRecorder creates a recorder answering through respond.
func NewRecorder(respond Responder) *Recorder {
	return &Recorder{Respond: respond}
}

// Do records req and returns the Responder's answer.
func (r *Recorder) Do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = data
		req.Body = io.NopCloser(bytes.NewReader(data))
	}

	r.mu.Lock()
	r.requests = append(r.requests, Recorded{
		Method: req.Method,
		URL:    req.URL,
		Header: req.Header.Clone(),
		Body:   body,
	})
	respond := r.Respond
	r.mu.Unlock()

	if respond == nil {
		respond = NoContent()
	}
	return respond(req)
}

// Requests returns the recorded requests in the order they were sent.
func (r *Recorder) Requests() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.requests...)
}

// Len returns the number of recorded requests.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// Last returns the most recent request, failing the test if there is none.
func (r *Recorder) Last(t testing.TB) Recorded {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return r.requests[len(r.requests)-1]
}

// Reset forgets every recorded request.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.requests = nil
	r.mu.Unlock()
}

// NewResponse creates a response to req with the given status, content type
// and body.
func NewResponse(req *http.Request, status int, contentType, body string) *http.Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// JSON answers with v encoded as JSON.
func JSON(status int, v any) Responder {
	return func(r *http.Request) (*http.Response, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return NewResponse(r, status, "application/json; charset=utf-8", string(data)), nil
	}
}

// Text answers with a plain text body.
func Text(status int, body string) Responder {
	return func(r *http.Request) (*http.Response, error) {
		return NewResponse(r, status, "text/plain; charset=utf-8", body), nil
	}
}

// Status answers with an empty body and the given status.
func Status(status int) Responder {
	return func(r *http.Request) (*http.Response, error) {
		return NewResponse(r, status, "", ""), nil
	}
}

// NoContent answers 204 No Content.
func NoContent() Responder {
	return Status(http.StatusNoContent)
}

// InboundBuilder constructs the ambient inbound request a caller would be
// serving when it makes outgoing calls.
type InboundBuilder struct {
	method  string
	path    string
	headers map[string]string
}

// NewInbound creates an inbound request builder for GET /.
func NewInbound() *InboundBuilder {
	return &InboundBuilder{
		method:  "GET",
		path:    "/",
		headers: make(map[string]string),
	}
}

// GET sets the HTTP method to GET.
func (b *InboundBuilder) GET(path string) *InboundBuilder {
	b.method = "GET"
	b.path = path
	return b
}

// POST sets the HTTP method to POST.
func (b *InboundBuilder) POST(path string) *InboundBuilder {
	b.method = "POST"
	b.path = path
	return b
}

// WithHeader adds a header to the request.
func (b *InboundBuilder) WithHeader(key, value string) *InboundBuilder {
	b.headers[key] = value
	return b
}

// WithBearer sets the Authorization header to a bearer token.
func (b *InboundBuilder) WithBearer(token string) *InboundBuilder {
	return b.WithHeader("Authorization", "Bearer "+token)
}

// Build creates the inbound request.
func (b *InboundBuilder) Build() *http.Request {
	req := httptest.NewRequest(b.method, b.path, nil)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req
}

// Context returns a context carrying the inbound request, derived from parent.
func (b *InboundBuilder) Context(parent context.Context) context.Context {
	return httprpc.WithInboundRequest(parent, b.Build())
}

// AssertQuery checks that the raw query of req equals expected.
func AssertQuery(t testing.TB, req Recorded, expected string) {
	t.Helper()
	if req.URL.RawQuery != expected {
		t.Errorf("expected query %q, got %q", expected, req.URL.RawQuery)
	}
}

// AssertPath checks that the path of req equals expected.
func AssertPath(t testing.TB, req Recorded, expected string) {
	t.Helper()
	if req.URL.Path != expected {
		t.Errorf("expected path %q, got %q", expected, req.URL.Path)
	}
}

// AssertHeader checks that a request header has the expected value.
func AssertHeader(t testing.TB, req Recorded, key, expectedValue string) {
	t.Helper()
	actual := req.Header.Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// AssertJSONBody compares the request body with the JSON encoding of
// expected, ignoring formatting differences.
func AssertJSONBody(t testing.TB, req Recorded, expected any) {
	t.Helper()

	contentType := req.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", contentType)
	}

	expectedJSON, _ := json.Marshal(expected)
	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	if err := json.Unmarshal(req.Body, &actualData); err != nil {
		t.Errorf("request body is not JSON: %v\nBody: %s", err, req.Body)
		return
	}

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("body mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}

// AssertErrorKind checks that err is an *httprpc.Error of the expected kind
// and returns it.
func AssertErrorKind(t testing.TB, err error, expected httprpc.ErrorKind) *httprpc.Error {
	t.Helper()
	if !httprpc.IsKind(err, expected) {
		t.Fatalf("expected %s error, got %v", expected, err)
	}
	var rpcErr *httprpc.Error
	errors.As(err, &rpcErr)
	return rpcErr
}

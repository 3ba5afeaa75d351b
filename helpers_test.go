package httprpc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
)

const testBaseURL = "http://example.test"

// recordingDoer records every request it is handed and answers through
// respond. Without a responder it answers 204.
type recordingDoer struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	respond  func(r *http.Request) (*http.Response, error)
}

func (d *recordingDoer) Do(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body.Close()
	}
	d.mu.Lock()
	d.requests = append(d.requests, r)
	d.bodies = append(d.bodies, body)
	respond := d.respond
	d.mu.Unlock()

	if respond == nil {
		return newResponse(r, http.StatusNoContent, "", ""), nil
	}
	resp, err := respond(r)
	if resp != nil && resp.Request == nil {
		resp.Request = r
	}
	return resp, err
}

func (d *recordingDoer) last(t *testing.T) (*http.Request, []byte) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.requests) == 0 {
		t.Fatal("no request was sent")
	}
	return d.requests[len(d.requests)-1], d.bodies[len(d.bodies)-1]
}

func (d *recordingDoer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func newResponse(r *http.Request, status int, contentType, body string) *http.Response {
	h := make(http.Header)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		Status:     http.StatusText(status),
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func respondJSON(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		return newResponse(r, status, "application/json; charset=utf-8", body), nil
	}
}

func respondText(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(r *http.Request) (*http.Response, error) {
		return newResponse(r, status, "text/plain; charset=utf-8", body), nil
	}
}

// newTestClient builds a factory with a single group for S at testBaseURL.
func newTestClient[S any](t *testing.T, doer Doer, configure ...func(*Group)) *Client[S] {
	t.Helper()
	f, err := NewBuilder().
		WithHTTPClient(doer).
		WithRegistry(NewRegistry()).
		AddGroup(func(g *Group) {
			g.BaseAddress = testBaseURL
			g.AddServices(ServiceOf[S]())
			for _, fn := range configure {
				fn(g)
			}
		}).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	c, err := ClientFor[S](f)
	if err != nil {
		t.Fatalf("ClientFor() error: %v", err)
	}
	return c
}

func mustDescribe(t *testing.T, v any) *ServiceDescriptor {
	t.Helper()
	d, err := NewRegistry().Describe(reflect.TypeOf(v))
	if err != nil {
		t.Fatalf("Describe(%T) error: %v", v, err)
	}
	return d
}

func mustMethod(t *testing.T, d *ServiceDescriptor, name string) *MethodDescriptor {
	t.Helper()
	m, ok := d.Method(name)
	if !ok {
		t.Fatalf("method %s not found", name)
	}
	return m
}

func mustBuild(t *testing.T, p *PendingRequest) *http.Request {
	t.Helper()
	u, _ := url.Parse(testBaseURL)
	req, err := p.build(context.Background(), u)
	if err != nil {
		t.Fatalf("build() error: %v", err)
	}
	return req
}

func readBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data
}

func ptr[T any](v T) *T { return &v }

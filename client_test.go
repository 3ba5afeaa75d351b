package httprpc

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestCall(t *testing.T) {
	doer := &recordingDoer{respond: respondJSON(http.StatusOK, "3")}
	c := newTestClient[calcService](t, doer)

	res, err := Call[int](c, func(s *calcService) { s.AddQuery(context.Background(), 1, 2) })
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if res.Data != 3 {
		t.Errorf("expected 3, got %d", res.Data)
	}
	if res.Response == nil || res.Response.StatusCode != http.StatusOK {
		t.Error("expected the response on the result")
	}
	if doer.count() != 1 {
		t.Errorf("expected one request, got %d", doer.count())
	}
}

func TestCall_Welcome(t *testing.T) {
	doer := &recordingDoer{respond: respondText(http.StatusOK, "Hello World")}
	c := newTestClient[welcomeService](t, doer)

	res, err := Call[string](c, func(s *welcomeService) { s.Welcome(context.Background()) })
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if res.Data != "Hello World" {
		t.Errorf("expected Hello World, got %q", res.Data)
	}
	req, _ := doer.last(t)
	if req.URL.Path != "/api/v1/" {
		t.Errorf("expected /api/v1/, got %s", req.URL.Path)
	}
}

func TestCall_WelcomeWithoutContentType(t *testing.T) {
	doer := &recordingDoer{respond: func(r *http.Request) (*http.Response, error) {
		return newResponse(r, http.StatusOK, "", "hello"), nil
	}}
	c := newTestClient[welcomeService](t, doer)

	got, err := c.Proxy().Welcome(context.Background())
	if err != nil {
		t.Fatalf("Welcome() error: %v", err)
	}
	if got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

func TestCall_WrongPayloadType(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient[calcService](t, doer)

	_, err := Call[string](c, func(s *calcService) { s.AddQuery(context.Background(), 1, 2) })
	if !IsKind(err, KindUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
	if doer.count() != 0 {
		t.Error("no request may be sent for a usage error")
	}
}

func TestCall_NoMethod(t *testing.T) {
	doer := &recordingDoer{}
	c := newTestClient[calcService](t, doer)

	_, err := c.Exec(func(*calcService) {})
	if !IsKind(err, KindUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}

func TestCall_Failure(t *testing.T) {
	doer := &recordingDoer{respond: respondJSON(http.StatusBadGateway, "")}
	c := newTestClient[calcService](t, doer)

	res, err := c.Exec(func(s *calcService) { s.AddRoute(context.Background(), 1, 2) })
	if res != nil {
		t.Error("a failed call must not return a result")
	}
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.StatusCode() != http.StatusBadGateway {
		t.Errorf("expected a 502 error response, got %v", err)
	}
}

func TestExec_Async(t *testing.T) {
	doer := &recordingDoer{respond: respondJSON(http.StatusOK, "9")}
	c := newTestClient[calcService](t, doer)

	res, err := Call[int](c, func(s *calcService) { s.Slow(context.Background(), 4) })
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if res.Data != 9 {
		t.Errorf("expected 9, got %d", res.Data)
	}

	if _, err := c.Exec(func(s *calcService) { s.Fire(context.Background()) }); err != nil {
		t.Errorf("Exec() error: %v", err)
	}
}

func TestProxy_Async(t *testing.T) {
	release := make(chan struct{})
	doer := &recordingDoer{respond: func(r *http.Request) (*http.Response, error) {
		<-release
		return newResponse(r, http.StatusOK, "application/json", "42"), nil
	}}
	c := newTestClient[calcService](t, doer)

	f := c.Proxy().Slow(context.Background(), 1)
	select {
	case <-f.Done():
		t.Fatal("future completed before the response arrived")
	default:
	}
	if f.Response() != nil {
		t.Error("a pending future has no response")
	}

	close(release)
	n, err := f.Get()
	if err != nil || n != 42 {
		t.Fatalf("Get() = %d, %v", n, err)
	}
	if f.Response() == nil || f.Response().StatusCode != http.StatusOK {
		t.Error("expected the response after completion")
	}
}

func TestProxy_AsyncFailure(t *testing.T) {
	doer := &recordingDoer{respond: respondJSON(http.StatusServiceUnavailable, "")}
	c := newTestClient[calcService](t, doer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Proxy().Fire(context.Background()).Await(ctx)
	if !IsKind(err, KindErrorResponse) {
		t.Errorf("expected error response, got %v", err)
	}
}

// The proxy, Call and Invoke must put the same request on the wire.
func TestSurfaces_IdenticalRequests(t *testing.T) {
	doer := &recordingDoer{respond: respondJSON(http.StatusOK, `{"Result":3}`)}
	c := newTestClient[calcService](t, doer)
	ctx := context.Background()
	dto := addDTO{A: 1, B: 2}

	if _, err := c.Proxy().AddJSON(ctx, dto); err != nil {
		t.Fatalf("proxy: %v", err)
	}
	if _, err := Call[addResult](c, func(s *calcService) { s.AddJSON(ctx, dto) }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	var out addResult
	if _, err := c.Endpoint().Invoke(ctx, NewCommand("AddJSON", Named("dto", dto)), &out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if doer.count() != 3 {
		t.Fatalf("expected 3 requests, got %d", doer.count())
	}
	first, firstBody := doer.requests[0], doer.bodies[0]
	for i := 1; i < 3; i++ {
		req, body := doer.requests[i], doer.bodies[i]
		if req.Method != first.Method || req.URL.String() != first.URL.String() {
			t.Errorf("request %d: %s %s, want %s %s", i, req.Method, req.URL, first.Method, first.URL)
		}
		if string(body) != string(firstBody) {
			t.Errorf("request %d: body %s, want %s", i, body, firstBody)
		}
		if req.Header.Get("Content-Type") != first.Header.Get("Content-Type") {
			t.Errorf("request %d: content type differs", i)
		}
	}
}

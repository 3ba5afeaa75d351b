package httprpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
)

func mockCallContext(t *testing.T, inbound *http.Request) *CallContext {
	t.Helper()
	m := mustMethod(t, mustDescribe(t, welcomeService{}), "Welcome")
	return &CallContext{
		ctx:     context.Background(),
		inv:     Invocation{Method: m},
		inbound: inbound,
		Request: newPendingRequest(m),
	}
}

func TestForwardAuthHook_Forwarded(t *testing.T) {
	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("Authorization", "Bearer Test")
	c := mockCallContext(t, in)

	if err := (forwardAuthHook{}).BeforeRequest(c); err != nil {
		t.Fatalf("BeforeRequest() error: %v", err)
	}
	if got := c.Request.Header.Get("Authorization"); got != "Bearer Test" {
		t.Errorf("expected Bearer Test, got %q", got)
	}
}

func TestForwardAuthHook_Override(t *testing.T) {
	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set("Authorization", "Bearer Test")
	c := mockCallContext(t, in)
	c.Request.Header.Set("Authorization", "ApiKey Test")

	if err := (forwardAuthHook{}).BeforeRequest(c); err != nil {
		t.Fatalf("BeforeRequest() error: %v", err)
	}
	if got := c.Request.Header.Values("Authorization"); len(got) != 1 || got[0] != "Bearer Test" {
		t.Errorf("expected the inbound value to replace the existing one, got %v", got)
	}
}

func TestForwardAuthHook_NotForwarded(t *testing.T) {
	c := mockCallContext(t, nil)
	if err := (forwardAuthHook{}).BeforeRequest(c); err != nil {
		t.Fatalf("BeforeRequest() error: %v", err)
	}
	if _, ok := c.Request.Header["Authorization"]; ok {
		t.Error("expected no Authorization header without an inbound request")
	}

	c = mockCallContext(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if err := (forwardAuthHook{}).BeforeRequest(c); err != nil {
		t.Fatalf("BeforeRequest() error: %v", err)
	}
	if _, ok := c.Request.Header["Authorization"]; ok {
		t.Error("expected no Authorization header when the inbound request has none")
	}
}

func TestBaseAddressHook(t *testing.T) {
	base, _ := url.Parse("https://api.example.test/v2")
	tr := &Transport{Client: http.DefaultClient}
	if err := (baseAddressHook{base: base}).ConfigureTransport(tr); err != nil {
		t.Fatalf("ConfigureTransport() error: %v", err)
	}
	if tr.BaseURL.String() != "https://api.example.test/v2" {
		t.Errorf("unexpected base URL %v", tr.BaseURL)
	}
	if tr.BaseURL == base {
		t.Error("the transport must get its own copy of the base URL")
	}
}

type namedHook struct {
	BaseHook
	name string
}

func TestChainHooks_Order(t *testing.T) {
	base, _ := url.Parse(testBaseURL)
	builder := []Hook{namedHook{name: "b1"}, namedHook{name: "b2"}}
	group := []Hook{namedHook{name: "g1"}}

	hooks := chainHooks(base, true, builder, group)
	want := []string{"base", "auth", "b1", "b2", "g1", "binding"}
	if len(hooks) != len(want) {
		t.Fatalf("expected %d hooks, got %d", len(want), len(hooks))
	}
	for i, h := range hooks {
		var got string
		switch h := h.(type) {
		case baseAddressHook:
			got = "base"
		case forwardAuthHook:
			got = "auth"
		case namedHook:
			got = h.name
		case bindingHook:
			got = "binding"
		}
		if got != want[i] {
			t.Errorf("hook %d: expected %s, got %s", i, want[i], got)
		}
	}

	hooks = chainHooks(nil, false, nil, nil)
	if len(hooks) != 1 || reflect.TypeOf(hooks[0]) != reflect.TypeFor[bindingHook]() {
		t.Errorf("binding must always be present, got %v", hooks)
	}
}

func TestHookFuncs(t *testing.T) {
	var calls []string
	h := HookFuncs{
		Before: func(*CallContext) error { calls = append(calls, "before"); return nil },
		Error:  func(*CallContext, error) { calls = append(calls, "error") },
	}
	if err := h.ConfigureTransport(&Transport{}); err != nil {
		t.Errorf("nil Configure must be a no-op, got %v", err)
	}
	if err := h.BeforeRequest(nil); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := h.AfterResponse(nil); err != nil {
		t.Errorf("nil After must be a no-op, got %v", err)
	}
	h.OnError(nil, errors.New("x"))
	if len(calls) != 2 || calls[0] != "before" || calls[1] != "error" {
		t.Errorf("unexpected calls %v", calls)
	}
}

func TestInboundMiddleware(t *testing.T) {
	var seen *http.Request
	h := InboundMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = InboundRequest(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen == nil || seen.URL.Path != "/x" {
		t.Errorf("expected the inbound request in the handler context, got %v", seen)
	}
	if InboundRequest(context.Background()) != nil {
		t.Error("expected nil without an inbound request")
	}
}

package httprpc

import (
	"net/http"
	"net/url"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Transport is the per-endpoint sending configuration. Hooks adjust it once,
// in ConfigureTransport, when the endpoint is built.
type Transport struct {
	Client  Doer
	BaseURL *url.URL
}

func (t *Transport) clone() *Transport {
	cp := *t
	if t.BaseURL != nil {
		u := *t.BaseURL
		cp.BaseURL = &u
	}
	return &cp
}

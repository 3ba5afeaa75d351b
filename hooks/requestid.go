package hooks

import (
	"net/http"

	"github.com/broady/httprpc"
	"github.com/google/uuid"
)

// DefaultRequestIDHeader is the header RequestID uses when none is given.
const DefaultRequestIDHeader = "X-Request-Id"

type requestID struct {
	httprpc.BaseHook
	header string
}

// RequestID creates a hook that sets a request id header on outgoing calls.
// A value already on the request is kept. Otherwise the inbound request's id
// is propagated, or a new UUID is generated.
func RequestID(header string) httprpc.Hook {
	if header == "" {
		header = DefaultRequestIDHeader
	}
	return requestID{header: http.CanonicalHeaderKey(header)}
}

func (h requestID) BeforeRequest(c *httprpc.CallContext) error {
	if c.Request.Header.Get(h.header) != "" {
		return nil
	}
	id := ""
	if in := c.Inbound(); in != nil {
		id = in.Header.Get(h.header)
	}
	if id == "" {
		id = uuid.NewString()
	}
	c.Request.Header.Set(h.header, id)
	return nil
}

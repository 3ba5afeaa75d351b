package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	schemaDecoder.SetAliasTag("json")
}

// Server is an httptest.Server whose routes use the same {name} templates as
// service methods, so a descriptor's Template can be served directly.
type Server struct {
	*httptest.Server
	Router *mux.Router
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	r := mux.NewRouter()
	s := &Server{Server: httptest.NewServer(r), Router: r}
	t.Cleanup(s.Close)
	return s
}

// Handle serves h for requests with the given verb and route template.
func (s *Server) Handle(verb, template string, h http.HandlerFunc) *mux.Route {
	if !strings.HasPrefix(template, "/") {
		template = "/" + template
	}
	return s.Router.HandleFunc(template, h).Methods(verb)
}

// HandleJSON serves the value returned by fn as JSON. A nil value answers
// 204 No Content; an error answers 500 with the error text.
func (s *Server) HandleJSON(verb, template string, fn func(r *http.Request) (any, error)) *mux.Route {
	return s.Handle(verb, template, func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if v == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	})
}

// Vars returns the route variables of a request served by a Server.
func Vars(r *http.Request) map[string]string {
	return mux.Vars(r)
}

// DecodeQuery decodes the query string of r into dst, a pointer to a struct.
// Fields are matched by their json tag; unknown keys are ignored.
func DecodeQuery(r *http.Request, dst any) error {
	return schemaDecoder.Decode(dst, r.URL.Query())
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

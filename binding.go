package httprpc

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BindingSource is the part of an HTTP request a parameter is written to.
type BindingSource int

const (
	// SourceInfer means no explicit annotation; the classifier decides.
	SourceInfer BindingSource = iota
	SourceRoute
	SourceQuery
	SourceHeader
	SourceForm
	SourceFormFile
	SourceBody
)

var sourceNames = [...]string{
	SourceInfer:    "infer",
	SourceRoute:    "route",
	SourceQuery:    "query",
	SourceHeader:   "header",
	SourceForm:     "form",
	SourceFormFile: "formfile",
	SourceBody:     "body",
}

func (s BindingSource) String() string {
	if s >= 0 && int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("BindingSource(%d)", int(s))
}

// ParseBindingSource parses an explicit binding annotation. Only the sources a
// contract may name are accepted; form files are always inferred.
func ParseBindingSource(s string) (BindingSource, error) {
	switch strings.ToLower(s) {
	case "route", "path":
		return SourceRoute, nil
	case "query":
		return SourceQuery, nil
	case "header":
		return SourceHeader, nil
	case "form":
		return SourceForm, nil
	case "body":
		return SourceBody, nil
	}
	return SourceInfer, fmt.Errorf("unknown binding source %q", s)
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	urlType      = reflect.TypeFor[url.URL]()
)

// IsSimpleType reports whether t is one of the primitive-like types that bind
// as a single string value: strings, booleans, numbers (including named
// integer enums), time.Time, time.Duration, uuid.UUID and url.URL, or a
// pointer to one of them.
func IsSimpleType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType, durationType, uuidType, urlType:
		return true
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// verbSupportsBody reports whether a request with this verb carries a body.
func verbSupportsBody(verb string) bool {
	switch verb {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Classify decides the binding source of a parameter. The first matching rule
// wins:
//  1. an explicit annotation is used verbatim
//  2. a file payload type binds as a form file
//  3. a name appearing as {name} in the route template binds to the route
//  4. a non-simple type on POST, PUT or PATCH binds to the body
//  5. everything else binds to the query string
func Classify(p ParamSpec, template, verb string) BindingSource {
	if p.Source != SourceInfer {
		return p.Source
	}
	if isFileType(p.Type) {
		return SourceFormFile
	}
	if strings.Contains(template, "{"+p.Name+"}") {
		return SourceRoute
	}
	if !IsSimpleType(p.Type) && verbSupportsBody(strings.ToUpper(verb)) {
		return SourceBody
	}
	return SourceQuery
}

// elementType returns the element type of a sequence parameter. Strings are
// never sequences, and neither are array-backed scalars such as uuid.UUID.
func elementType(t reflect.Type) reflect.Type {
	if t == nil || IsSimpleType(t) {
		return nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem()
	}
	return nil
}

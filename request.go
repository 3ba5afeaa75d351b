package httprpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Query is an ordered list of query string pairs. Unlike url.Values it keeps
// insertion order and repeated keys exactly as added.
type Query struct {
	pairs [][2]string
}

// Add appends a key-value pair.
func (q *Query) Add(key, value string) {
	q.pairs = append(q.pairs, [2]string{key, value})
}

// Get returns the first value for key.
func (q *Query) Get(key string) string {
	for _, p := range q.pairs {
		if p[0] == key {
			return p[1]
		}
	}
	return ""
}

// Values returns every value for key, in order.
func (q *Query) Values(key string) []string {
	var out []string
	for _, p := range q.pairs {
		if p[0] == key {
			out = append(out, p[1])
		}
	}
	return out
}

// Len returns the number of pairs.
func (q *Query) Len() int { return len(q.pairs) }

// Encode returns the pairs in "k=v&k=v" form.
func (q *Query) Encode() string {
	var b strings.Builder
	for i, p := range q.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(queryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(queryEscape(p[1]))
	}
	return b.String()
}

// queryEscape escapes s for a query component, with spaces as %20.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

type formPart struct {
	name  string
	value string
	file  FormFile
}

// PendingRequest is the mutable request under construction. Hooks may edit it
// in BeforeRequest; binding resolution fills it from the call's arguments.
type PendingRequest struct {
	// Method is the HTTP verb.
	Method string
	// Path is the route template. Route parameters are substituted in place.
	Path   string
	Header http.Header
	Query  Query
	// Body is the encoded request body. When set it takes precedence over form
	// fields and files.
	Body []byte

	form []formPart
}

func newPendingRequest(m *MethodDescriptor) *PendingRequest {
	return &PendingRequest{
		Method: m.verb,
		Path:   m.template,
		Header: make(http.Header),
	}
}

// SetJSONBody encodes v as the JSON request body.
func (p *PendingRequest) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.Body = data
	p.Header.Set("Content-Type", "application/json")
	return nil
}

// AddFormField adds a multipart form field.
func (p *PendingRequest) AddFormField(name, value string) {
	p.form = append(p.form, formPart{name: name, value: value})
}

// AddFormFile adds a multipart file part.
func (p *PendingRequest) AddFormFile(name string, f FormFile) {
	p.form = append(p.form, formPart{name: name, file: f})
}

// HasForm reports whether any form fields or files were added.
func (p *PendingRequest) HasForm() bool {
	return len(p.form) > 0
}

// URL returns base joined with the path and the encoded query.
func (p *PendingRequest) URL(base *url.URL) string {
	var u string
	if base != nil {
		u = strings.TrimRight(base.String(), "/")
	}
	u += p.Path
	if p.Query.Len() > 0 {
		u += "?" + p.Query.Encode()
	}
	return u
}

// build finalizes the pending request into an *http.Request.
func (p *PendingRequest) build(ctx context.Context, base *url.URL) (*http.Request, error) {
	var body io.Reader
	header := p.Header.Clone()
	switch {
	case p.Body != nil:
		body = bytes.NewReader(p.Body)
	case len(p.form) > 0:
		buf, contentType, err := p.encodeForm()
		if err != nil {
			return nil, err
		}
		body = buf
		header.Set("Content-Type", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL(base), body)
	if err != nil {
		return nil, err
	}
	req.Header = header
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	return req, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (p *PendingRequest) encodeForm() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, part := range p.form {
		if part.file == nil {
			if err := w.WriteField(part.name, part.value); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := writeFilePart(w, part.name, part.file); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, name string, f FormFile) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(name), quoteEscaper.Replace(f.FileName())))
	contentType := f.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	dst, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.FileName(), err)
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

// resolve writes every argument of inv into req according to its parameter's
// binding source.
func resolve(inv Invocation, req *PendingRequest) error {
	for _, p := range inv.Method.params {
		var arg any
		if p.index < len(inv.Args) {
			arg = inv.Args[p.index]
		}
		if err := resolveParam(p, reflect.ValueOf(arg), req); err != nil {
			return err
		}
	}
	return nil
}

func resolveParam(p *ParameterDescriptor, v reflect.Value, req *PendingRequest) error {
	switch p.source {
	case SourceRoute:
		s, ok := formatScalar(v)
		if !ok {
			return unsupported(p)
		}
		req.Path = strings.ReplaceAll(req.Path, "{"+p.wire+"}", s)

	case SourceHeader:
		values, ok := scalarValues(v)
		if !ok {
			return unsupported(p)
		}
		for _, s := range values {
			req.Header.Add(p.wire, s)
		}

	case SourceForm:
		if !IsSimpleType(p.typ) {
			return unsupported(p)
		}
		if isNil(v) {
			return nil
		}
		s, _ := formatScalar(v)
		req.AddFormField(p.wire, s)

	case SourceFormFile:
		return resolveFiles(p, v, req)

	case SourceBody:
		var body any
		if v.IsValid() {
			body = v.Interface()
		}
		if err := req.SetJSONBody(body); err != nil {
			return wrapError(KindInvalidBindingData, err, "encode body parameter %q", p.name)
		}

	case SourceQuery:
		return appendQuery(p, &req.Query, p.wire, v)

	default:
		return Errorf(KindUnsupportedBinding, "parameter %q has unknown binding source %s", p.name, p.source)
	}
	return nil
}

func resolveFiles(p *ParameterDescriptor, v reflect.Value, req *PendingRequest) error {
	if v.IsValid() && v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		if f, ok := v.Interface().(FormFile); ok && !isNil(v) {
			req.AddFormFile(p.wire, f)
			return nil
		}
		return Errorf(KindInvalidBindingData, "parameter %q: expected a file, got %s", p.name, describeValue(v))
	}
	if !v.IsValid() {
		return Errorf(KindInvalidBindingData, "parameter %q: expected a file, got nil", p.name)
	}
	for i := range v.Len() {
		e := v.Index(i)
		f, ok := e.Interface().(FormFile)
		if !ok || isNil(e) {
			return Errorf(KindInvalidBindingData, "parameter %q: element %d is not a file", p.name, i)
		}
		req.AddFormFile(p.wire, f)
	}
	return nil
}

// appendQuery adds v to q under key. Sequences add one pair per element,
// structs are flattened into their fields and nil adds an empty value.
func appendQuery(p *ParameterDescriptor, q *Query, key string, v reflect.Value) error {
	if v.IsValid() && v.Kind() == reflect.Map {
		return unsupported(p)
	}
	if isNil(v) {
		q.Add(key, "")
		return nil
	}
	if s, ok := formatScalar(v); ok {
		q.Add(key, s)
		return nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if err := appendQuery(p, q, key, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		fields := make(map[string][]string)
		if err := queryEncoder.Encode(v.Interface(), fields); err != nil {
			return wrapError(KindUnsupportedBinding, err, "parameter %q cannot be encoded into the query string", p.name)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, s := range fields[k] {
				q.Add(k, s)
			}
		}
		return nil
	}
	return unsupported(p)
}

func unsupported(p *ParameterDescriptor) *Error {
	return Errorf(KindUnsupportedBinding, "%s: parameter %q of type %s cannot bind to %s", p.method.FullName(), p.name, p.typ, p.source)
}

func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	}
	return false
}

func describeValue(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return v.Type().String()
}

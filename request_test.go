package httprpc

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// buildCall binds args to method name of service v and returns the finished
// request.
func buildCall(t *testing.T, v any, name string, args ...Arg) (*http.Request, error) {
	t.Helper()
	m := mustMethod(t, mustDescribe(t, v), name)
	inv, err := m.bind(context.Background(), args)
	if err != nil {
		t.Fatalf("bind() error: %v", err)
	}
	p := newPendingRequest(m)
	if err := resolve(inv, p); err != nil {
		return nil, err
	}
	return mustBuild(t, p), nil
}

func mustBuildCall(t *testing.T, v any, name string, args ...Arg) *http.Request {
	t.Helper()
	req, err := buildCall(t, v, name, args...)
	if err != nil {
		t.Fatalf("resolve() error: %v", err)
	}
	return req
}

func TestResolve_Route(t *testing.T) {
	req := mustBuildCall(t, calcService{}, "AddRoute", Named("a", 1), Named("b", 2))
	if req.Method != http.MethodGet {
		t.Errorf("expected GET, got %s", req.Method)
	}
	if req.URL.Path != "/api/v1/add/1/2" {
		t.Errorf("expected /api/v1/add/1/2, got %s", req.URL.Path)
	}
	if req.URL.RawQuery != "" {
		t.Errorf("expected no query, got %s", req.URL.RawQuery)
	}
	if req.Body != nil {
		t.Error("expected no body")
	}
	if req.Header.Get("Accept") != "*/*" {
		t.Errorf("expected Accept */*, got %q", req.Header.Get("Accept"))
	}
}

func TestResolve_RouteWireName(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	req := mustBuildCall(t, calcService{}, "Item", Named("id", id))
	if req.URL.Path != "/api/v1/items/"+id.String() {
		t.Errorf("unexpected path %s", req.URL.Path)
	}
}

func TestResolve_Welcome(t *testing.T) {
	req := mustBuildCall(t, welcomeService{}, "Welcome")
	if req.URL.Path != "/api/v1/" {
		t.Errorf("expected /api/v1/, got %s", req.URL.Path)
	}
}

func TestResolve_AbsoluteTemplate(t *testing.T) {
	req := mustBuildCall(t, calcService{}, "Absolute")
	if req.URL.String() != testBaseURL+"/health" {
		t.Errorf("expected the method template to replace the prefix, got %s", req.URL)
	}
}

func TestResolve_QueryOrder(t *testing.T) {
	req := mustBuildCall(t, calcService{}, "AddQuery", Named("a", 1), Named("b", 2))
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.URL.Path != "/api/v1/add" {
		t.Errorf("unexpected path %s", req.URL.Path)
	}
	if req.URL.RawQuery != "a=1&b=2" {
		t.Errorf("expected a=1&b=2, got %s", req.URL.RawQuery)
	}

	req = mustBuildCall(t, queryService{}, "Query", Named("version", "123456"), Named("number", 1))
	if req.URL.RawQuery != "version=123456&number=1" {
		t.Errorf("expected version=123456&number=1, got %s", req.URL.RawQuery)
	}
}

func TestResolve_QueryDefaults(t *testing.T) {
	req := mustBuildCall(t, defaultsService{}, "Query",
		Named("enums", []testColor{colorRed, colorGreen}),
		Named("b", "hello"),
	)
	want := "enums=0&enums=1&a=0&a2=&b=hello&b2=text"
	if req.URL.RawQuery != want {
		t.Errorf("expected %s, got %s", want, req.URL.RawQuery)
	}
}

func TestResolve_QueryScalars(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 500, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	req := mustBuildCall(t, queryService{}, "Since",
		Named("t", at), Named("d", 90*time.Second), Named("id", id))

	q := req.URL.Query()
	if q.Get("t") != "2024-03-01T12:30:00.0000005Z" {
		t.Errorf("unexpected time %s", q.Get("t"))
	}
	if q.Get("d") != "1m30s" {
		t.Errorf("unexpected duration %s", q.Get("d"))
	}
	if q.Get("id") != id.String() {
		t.Errorf("unexpected uuid %s", q.Get("id"))
	}
}

func TestResolve_QuerySequencesAndNil(t *testing.T) {
	req := mustBuildCall(t, queryService{}, "Colors", Named("c", []testColor{colorBlue, colorRed}), Named("on", true))
	if req.URL.RawQuery != "c=2&c=0&on=true" {
		t.Errorf("unexpected query %s", req.URL.RawQuery)
	}

	req = mustBuildCall(t, queryService{}, "Colors", Named("c", []testColor{}))
	if req.URL.RawQuery != "on=" {
		t.Errorf("empty slice adds nothing and nil adds an empty value, got %s", req.URL.RawQuery)
	}

	req = mustBuildCall(t, queryService{}, "Colors")
	if req.URL.RawQuery != "c=&on=" {
		t.Errorf("unexpected query for nil values %s", req.URL.RawQuery)
	}
}

func TestResolve_QueryStruct(t *testing.T) {
	req := mustBuildCall(t, queryService{}, "Search",
		Named("f", searchFilter{Name: "ann lee", Limit: 5, Tags: []string{"x", "y"}}))
	if req.URL.RawQuery != "Tags=x&Tags=y&limit=5&name=ann%20lee" {
		t.Errorf("unexpected query %s", req.URL.RawQuery)
	}
}

func TestResolve_QueryMapUnsupported(t *testing.T) {
	_, err := buildCall(t, queryService{}, "Labels", Named("m", map[string]string{"a": "b"}))
	if !IsKind(err, KindUnsupportedBinding) {
		t.Errorf("expected unsupported binding error, got %v", err)
	}
}

func TestResolve_Header(t *testing.T) {
	req := mustBuildCall(t, queryService{}, "Headers", Named("tenant", "acme"), Named("tags", []string{"a", "b"}))
	if req.Header.Get("X-Tenant") != "acme" {
		t.Errorf("unexpected tenant header %q", req.Header.Get("X-Tenant"))
	}
	if got := req.Header.Values("X-Tag"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected one header value per element, got %v", got)
	}
	if req.URL.RawQuery != "" {
		t.Errorf("headers must not leak into the query, got %s", req.URL.RawQuery)
	}
}

func TestResolve_Body(t *testing.T) {
	req := mustBuildCall(t, calcService{}, "AddJSON", Named("dto", addDTO{A: 1, B: 2}))
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected content type %q", req.Header.Get("Content-Type"))
	}
	if body := string(readBody(t, req)); body != `{"A":1,"B":2}` {
		t.Errorf("unexpected body %s", body)
	}

	req = mustBuildCall(t, calcService{}, "Put", Named("id", 7), Named("p", person{Name: "ann", Age: 3}))
	if req.Method != http.MethodPut || req.URL.Path != "/api/v1/people/7" {
		t.Errorf("unexpected request line %s %s", req.Method, req.URL.Path)
	}
	if body := string(readBody(t, req)); body != `{"name":"ann","age":3}` {
		t.Errorf("unexpected body %s", body)
	}
}

type parsedPart struct {
	name, filename, contentType, content string
}

func readMultipart(t *testing.T, req *http.Request) []parsedPart {
	t.Helper()
	mt, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/form-data" {
		t.Fatalf("expected multipart/form-data, got %q", req.Header.Get("Content-Type"))
	}
	mr := multipart.NewReader(req.Body, params["boundary"])
	var parts []parsedPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart() error: %v", err)
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, parsedPart{
			name:        p.FormName(),
			filename:    p.FileName(),
			contentType: p.Header.Get("Content-Type"),
			content:     string(data),
		})
	}
	return parts
}

func TestResolve_Form(t *testing.T) {
	req := mustBuildCall(t, calcService{}, "AddForm", Named("a", 1), Named("b", 2))
	if req.URL.Path != "/api/v1/add" || req.URL.RawQuery != "" {
		t.Errorf("unexpected URL %s", req.URL)
	}
	parts := readMultipart(t, req)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].name != "a" || parts[0].content != "1" {
		t.Errorf("unexpected part a: %+v", parts[0])
	}
	if parts[1].name != "b" || parts[1].content != "2" {
		t.Errorf("unexpected part b: %+v", parts[1])
	}
}

func TestResolve_FormRejectsComposite(t *testing.T) {
	_, err := buildCall(t, uploadService{}, "Meta", Named("meta", searchFilter{Name: "x"}))
	if !IsKind(err, KindUnsupportedBinding) {
		t.Errorf("expected unsupported binding error, got %v", err)
	}
}

func TestResolve_File(t *testing.T) {
	file := NewFile("test.txt", "text/plain", []byte("Hello World"))
	req := mustBuildCall(t, uploadService{}, "Upload", Named("userId", "foo"), Named("file", file))

	parts := readMultipart(t, req)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0] != (parsedPart{name: "userId", content: "foo"}) {
		t.Errorf("unexpected userId part %+v", parts[0])
	}
	want := parsedPart{name: "file", filename: "test.txt", contentType: "text/plain", content: "Hello World"}
	if parts[1] != want {
		t.Errorf("unexpected file part %+v", parts[1])
	}
}

func TestResolve_Files(t *testing.T) {
	files := []*File{
		NewFile("test1.txt", "text/plain", []byte("Hello World")),
		NewFile("test2.txt", "", []byte("Hello World2")),
	}
	req := mustBuildCall(t, uploadService{}, "UploadMany", Named("files", files))

	parts := readMultipart(t, req)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].filename != "test1.txt" || parts[0].content != "Hello World" {
		t.Errorf("unexpected first file %+v", parts[0])
	}
	if parts[1].filename != "test2.txt" || parts[1].content != "Hello World2" {
		t.Errorf("unexpected second file %+v", parts[1])
	}
	if parts[1].contentType != "application/octet-stream" {
		t.Errorf("expected octet-stream fallback, got %q", parts[1].contentType)
	}
}

func TestResolve_FileErrors(t *testing.T) {
	_, err := buildCall(t, uploadService{}, "Upload", Named("userId", "foo"), Named("file", (*File)(nil)))
	if !IsKind(err, KindInvalidBindingData) {
		t.Errorf("expected invalid binding data for nil file, got %v", err)
	}

	_, err = buildCall(t, uploadService{}, "UploadAny", Named("file", nil))
	if !IsKind(err, KindInvalidBindingData) {
		t.Errorf("expected invalid binding data for nil interface, got %v", err)
	}

	req := mustBuildCall(t, uploadService{}, "UploadMany", Named("files", nil))
	if req.Body != nil {
		t.Error("a nil file list must produce no parts")
	}
}

func TestResolve_ReaderFile(t *testing.T) {
	f := &ReaderFile{Name: "stream.bin", Reader: strings.NewReader("payload")}
	req := mustBuildCall(t, uploadService{}, "UploadAny", Named("file", f))
	parts := readMultipart(t, req)
	if len(parts) != 1 || parts[0].content != "payload" || parts[0].filename != "stream.bin" {
		t.Errorf("unexpected parts %+v", parts)
	}
}

func TestPendingRequest_AcceptKept(t *testing.T) {
	m := mustMethod(t, mustDescribe(t, welcomeService{}), "Welcome")
	p := newPendingRequest(m)
	p.Header.Set("Accept", "application/json")
	req := mustBuild(t, p)
	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("an existing Accept header must be kept, got %q", req.Header.Get("Accept"))
	}
}

func TestPendingRequest_URL(t *testing.T) {
	p := &PendingRequest{Path: "/api/v1/add"}
	p.Query.Add("a b", "c&d")
	p.Query.Add("a b", "e")

	base, _ := url.Parse("http://example.test/root/")
	if got := p.URL(base); got != "http://example.test/root/api/v1/add?a+b=c%26d&a+b=e" {
		t.Errorf("unexpected URL %s", got)
	}
	if got := p.Query.Values("a b"); len(got) != 2 {
		t.Errorf("expected 2 values, got %v", got)
	}
	if p.Query.Get("a b") != "c&d" {
		t.Errorf("Get must return the first value, got %s", p.Query.Get("a b"))
	}
}

func TestFormatScalar(t *testing.T) {
	u, _ := url.Parse("https://example.test/a?b=c")
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "x y", "x y"},
		{"bool", false, "false"},
		{"negative int", -3, "-3"},
		{"uint", uint16(9), "9"},
		{"float", 1.5, "1.5"},
		{"float32", float32(0.25), "0.25"},
		{"large float", 1e21, "1000000000000000000000"},
		{"enum", colorGreen, "1"},
		{"url", *u, "https://example.test/a?b=c"},
		{"pointer", ptr(4), "4"},
		{"nil pointer", (*int)(nil), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatScalar(reflect.ValueOf(tt.in))
			if !ok {
				t.Fatalf("formatScalar(%v) not ok", tt.in)
			}
			if got != tt.want {
				t.Errorf("formatScalar(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestQuery_Encode(t *testing.T) {
	var q Query
	q.Add("version", "a b/c")
	q.Add("sum", "1+2")
	q.Add("version", "")
	if got, want := q.Encode(), "version=a%20b%2Fc&sum=1%2B2&version="; got != want {
		t.Errorf("Encode() = %s, want %s", got, want)
	}
	if v := q.Values("version"); len(v) != 2 || v[0] != "a b/c" {
		t.Errorf("Values() = %v", v)
	}
}

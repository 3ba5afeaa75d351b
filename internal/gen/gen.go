// Package gen renders Go source for the service interfaces found by package
// directive: a ServiceSpec registration and a typed client per interface.
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/types"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/broady/httprpc/internal/directive"
)

const runtimePath = "github.com/broady/httprpc"

// File is one generated source file.
type File struct {
	Path   string
	Source []byte
}

// Files renders one file per source file that declares services. A file
// declaring services in foo.go is written next to it as foo_httprpc.go.
func Files(res *directive.Result) ([]File, error) {
	byFile := make(map[string][]directive.Service)
	var order []string
	for _, svc := range res.Services {
		if _, ok := byFile[svc.File]; !ok {
			order = append(order, svc.File)
		}
		byFile[svc.File] = append(byFile[svc.File], svc)
	}
	sort.Strings(order)

	var files []File
	for _, src := range order {
		out, err := Render(res.PackagePath, res.PackageName, byFile[src])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(src), err)
		}
		files = append(files, File{Path: OutputPath(src), Source: out})
	}
	return files, nil
}

// OutputPath returns the generated file path for a source file.
func OutputPath(src string) string {
	return strings.TrimSuffix(src, ".go") + directive.GeneratedSuffix
}

// Render renders the services of package pkgPath into one formatted file.
func Render(pkgPath, pkgName string, services []directive.Service) ([]byte, error) {
	q := &qualifier{self: pkgPath, imports: map[string]string{
		"reflect":   "reflect",
		runtimePath: "httprpc",
	}}

	data := fileData{Package: pkgName}
	for _, svc := range services {
		sd, err := newServiceData(svc, q)
		if err != nil {
			return nil, err
		}
		data.Services = append(data.Services, sd)
	}
	data.Std, data.Other = q.groups()

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w\n%s", err, buf.Bytes())
	}
	return out, nil
}

// qualifier writes type names relative to the generated package and records
// the imports they need.
type qualifier struct {
	self    string
	imports map[string]string // path -> name
}

func (q *qualifier) qualify(p *types.Package) string {
	if p.Path() == q.self {
		return ""
	}
	q.imports[p.Path()] = p.Name()
	return p.Name()
}

func (q *qualifier) typeString(t types.Type) string {
	return types.TypeString(t, q.qualify)
}

type importSpec struct {
	Name string // set only when it differs from the last path element
	Path string
}

// groups splits the imports into standard library and other packages, each
// sorted by path.
func (q *qualifier) groups() (std, other []importSpec) {
	paths := make([]string, 0, len(q.imports))
	for p := range q.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		spec := importSpec{Path: p}
		if name := q.imports[p]; name != p[strings.LastIndex(p, "/")+1:] {
			spec.Name = name
		}
		if strings.Contains(strings.SplitN(p, "/", 2)[0], ".") {
			other = append(other, spec)
		} else {
			std = append(std, spec)
		}
	}
	return std, other
}

type fileData struct {
	Package  string
	Std      []importSpec
	Other    []importSpec
	Services []serviceData
}

type serviceData struct {
	Name    string
	ID      string
	Route   string
	Client  string
	Methods []methodData
}

type methodData struct {
	Name      string
	Verb      string
	Template  string
	Params    []paramData
	Result    string // payload type, empty when there is none
	Async     bool
	Signature string // parameter list including the context
	Returns   string
	Command   string
	Ctx       string
	Recv      string
	Out       string
	Err       string
}

type paramData struct {
	Name       string
	Type       string
	Source     string // httprpc constant name, empty when inferred
	WireName   string
	Default    string
	HasDefault bool
}

var sourceConsts = map[string]string{
	"route":  "SourceRoute",
	"query":  "SourceQuery",
	"header": "SourceHeader",
	"form":   "SourceForm",
	"body":   "SourceBody",
}

func newServiceData(svc directive.Service, q *qualifier) (serviceData, error) {
	sd := serviceData{
		Name:   svc.Name,
		ID:     svc.ID,
		Route:  svc.Route,
		Client: svc.Name + "Client",
	}
	for _, m := range svc.Methods {
		if m.Name == "endpoint" {
			return serviceData{}, fmt.Errorf("%s: method name %q is reserved in generated clients", m.Pos, m.Name)
		}
		md, err := newMethodData(m, q)
		if err != nil {
			return serviceData{}, err
		}
		sd.Methods = append(sd.Methods, md)
	}
	return sd, nil
}

func newMethodData(m directive.Method, q *qualifier) (methodData, error) {
	taken := make(map[string]bool)
	for _, p := range m.Params {
		taken[p.Name] = true
	}
	md := methodData{
		Name:     m.Name,
		Verb:     m.Verb,
		Template: m.Template,
		Async:    m.Async,
	}
	md.Ctx = m.Context
	if md.Ctx == "" || md.Ctx == "_" {
		md.Ctx = fresh("ctx", taken)
	}
	taken[md.Ctx] = true
	md.Recv = fresh("c", taken)
	md.Out = fresh("out", taken)
	md.Err = fresh("err", taken)

	sig := []string{md.Ctx + " " + q.typeString(contextType())}
	args := []string{fmt.Sprintf("%q", m.Name)}
	for _, p := range m.Params {
		pd := paramData{
			Name:       p.Name,
			Type:       q.typeString(p.Type),
			WireName:   p.WireName,
			Default:    p.Default,
			HasDefault: p.HasDefault,
		}
		if p.Source != "" {
			c, ok := sourceConsts[p.Source]
			if !ok {
				return methodData{}, fmt.Errorf("%s: parameter %s has unknown source %q", m.Pos, p.Name, p.Source)
			}
			pd.Source = c
		}
		md.Params = append(md.Params, pd)
		sig = append(sig, pd.Name+" "+pd.Type)
		args = append(args, fmt.Sprintf("httprpc.Named(%q, %s)", p.Name, p.Name))
	}
	md.Signature = strings.Join(sig, ", ")
	md.Command = "httprpc.NewCommand(" + strings.Join(args, ", ") + ")"

	if m.Result != nil {
		md.Result = q.typeString(m.Result)
	}
	switch {
	case m.Async && md.Result != "":
		md.Returns = "*httprpc.Future[" + md.Result + "]"
	case m.Async:
		md.Returns = "*httprpc.Future[httprpc.Void]"
	case md.Result != "":
		md.Returns = "(" + md.Result + ", error)"
	default:
		md.Returns = "error"
	}
	return md, nil
}

// contextType builds context.Context so the qualifier records the import.
func contextType() types.Type {
	pkg := types.NewPackage("context", "context")
	obj := types.NewTypeName(0, pkg, "Context", nil)
	return types.NewNamed(obj, types.NewInterfaceType(nil, nil), nil)
}

// fresh returns name, or name with underscores appended, such that it is not
// in taken.
func fresh(name string, taken map[string]bool) string {
	for taken[name] {
		name += "_"
	}
	return name
}

var fileTemplate = template.Must(template.New("file").Parse(fileTemplateText))

const fileTemplateText = `// Code generated by httprpc gen. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Std}}
	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
{{if .Other}}
{{- range .Other}}
	{{if .Name}}{{.Name}} {{end}}"{{.Path}}"
{{- end}}
{{- end}}
)
{{range $svc := .Services}}
func init() {
	httprpc.MustRegister(httprpc.ServiceSpec{
		ID:     {{printf "%q" .ID}},
		Name:   {{printf "%q" .Name}},
		Routes: []string{ {{- printf "%q" .Route -}} },
		Methods: []httprpc.MethodSpec{
		{{- range .Methods}}
			{
				Name:  {{printf "%q" .Name}},
				Verbs: []httprpc.VerbSpec{ {Verb: {{printf "%q" .Verb}}, Template: {{printf "%q" .Template}}} },
				{{- if .Params}}
				Params: []httprpc.ParamSpec{
				{{- range .Params}}
					{Name: {{printf "%q" .Name}}, Type: reflect.TypeFor[{{.Type}}](){{if .Source}}, Source: httprpc.{{.Source}}{{end}}{{if .WireName}}, WireName: {{printf "%q" .WireName}}{{end}}{{if .HasDefault}}, Default: {{printf "%q" .Default}}, HasDefault: true{{end}}},
				{{- end}}
				},
				{{- end}}
				{{- if .Result}}
				Result: reflect.TypeFor[{{.Result}}](),
				{{- end}}
				{{- if .Async}}
				Async: true,
				{{- end}}
			},
		{{- end}}
		},
	})
}

// {{.Client}} implements {{.Name}} by sending HTTP requests.
type {{.Client}} struct {
	endpoint *httprpc.Endpoint
}

var _ {{.Name}} = (*{{.Client}})(nil)

// New{{.Client}} returns a client that sends requests through e.
func New{{.Client}}(e *httprpc.Endpoint) *{{.Client}} {
	return &{{.Client}}{endpoint: e}
}

// {{.Client}}From returns the client of the {{.Name}} endpoint configured in f.
func {{.Client}}From(f *httprpc.Factory) (*{{.Client}}, error) {
	e, err := f.Endpoint({{printf "%q" .ID}})
	if err != nil {
		return nil, err
	}
	return New{{.Client}}(e), nil
}
{{range .Methods}}
func ({{.Recv}} *{{$svc.Client}}) {{.Name}}({{.Signature}}) {{.Returns}} {
{{- if .Async}}
	return httprpc.Async(func() ({{if .Result}}{{.Result}}{{else}}httprpc.Void{{end}}, error) {
	{{- if .Result}}
		var {{.Out}} {{.Result}}
		_, {{.Err}} := {{.Recv}}.endpoint.Invoke({{.Ctx}}, {{.Command}}, &{{.Out}})
		return {{.Out}}, {{.Err}}
	{{- else}}
		_, {{.Err}} := {{.Recv}}.endpoint.Invoke({{.Ctx}}, {{.Command}}, nil)
		return httprpc.Void{}, {{.Err}}
	{{- end}}
	})
{{- else if .Result}}
	var {{.Out}} {{.Result}}
	_, {{.Err}} := {{.Recv}}.endpoint.Invoke({{.Ctx}}, {{.Command}}, &{{.Out}})
	return {{.Out}}, {{.Err}}
{{- else}}
	_, {{.Err}} := {{.Recv}}.endpoint.Invoke({{.Ctx}}, {{.Command}}, nil)
	return {{.Err}}
{{- end}}
}
{{end}}
{{- end}}`

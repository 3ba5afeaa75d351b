// Package directive parses httprpc directives from Go source files.
//
// Directives are line comments on interface declarations and their methods:
//
//	//httprpc:route api/v1
//	type Calculator interface {
//		//httprpc:get add/{a}/{b}
//		Add(ctx context.Context, a, b int) (int, error)
//
//		//httprpc:post users
//		//httprpc:param u body
//		Store(ctx context.Context, u User) error
//	}
//
// The route directive marks an interface as a service contract and gives its
// route prefix. Each method carries exactly one verb directive (get, post,
// put, patch, delete, head or options) whose argument is the method's route
// template. Param directives give a parameter an explicit binding source, a
// wire name or a default value:
//
//	//httprpc:param <name> [source[=wire]] [default=value]
package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"github.com/broady/httprpc"
	"golang.org/x/tools/go/packages"
)

const prefix = "//httprpc:"

// GeneratedSuffix ends the name of every file written by the generator.
const GeneratedSuffix = "_httprpc.go"

// isGenerated reports whether a file name or "file:line:col" position names a
// generated file.
func isGenerated(pos string) bool {
	file := pos
	if i := strings.Index(pos, ".go:"); i >= 0 {
		file = pos[:i+3]
	}
	return strings.HasSuffix(file, GeneratedSuffix)
}

// Kind represents the type of directive.
type Kind string

const (
	KindRoute Kind = "route"
	KindVerb  Kind = "verb"
	KindParam Kind = "param"
)

var verbs = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "head": true, "options": true,
}

// Directive represents one parsed directive comment.
type Directive struct {
	Kind Kind
	Name string   // directive name as written, e.g. "get" or "param"
	Args []string // whitespace separated arguments
	Pos  token.Position
}

// ParamDirective is the parsed form of //httprpc:param.
type ParamDirective struct {
	Name       string
	Source     string // canonical source name, empty when inferred
	WireName   string
	Default    string
	HasDefault bool
	Pos        token.Position
}

// parseComment parses a single comment. ok is false for comments that are
// not httprpc directives.
func parseComment(fset *token.FileSet, c *ast.Comment) (d Directive, ok bool, err error) {
	if !strings.HasPrefix(c.Text, prefix) {
		return Directive{}, false, nil
	}
	pos := fset.Position(c.Pos())
	parts := strings.Fields(strings.TrimPrefix(c.Text, prefix))
	if len(parts) == 0 {
		return Directive{}, false, fmt.Errorf("%s: empty httprpc directive", pos)
	}
	d = Directive{Name: parts[0], Args: parts[1:], Pos: pos}
	switch {
	case parts[0] == "route":
		d.Kind = KindRoute
	case parts[0] == "param":
		d.Kind = KindParam
	case verbs[parts[0]]:
		d.Kind = KindVerb
	default:
		return Directive{}, false, fmt.Errorf("%s: unknown directive %s%s", pos, prefix, parts[0])
	}
	if len(d.Args) > 1 && d.Kind != KindParam {
		return Directive{}, false, fmt.Errorf("%s: %s%s takes at most one argument", pos, prefix, d.Name)
	}
	return d, true, nil
}

// Arg returns the first argument, or "" when there is none.
func (d Directive) Arg() string {
	if len(d.Args) == 0 {
		return ""
	}
	return d.Args[0]
}

// Param parses a param directive.
func (d Directive) Param() (ParamDirective, error) {
	if d.Kind != KindParam {
		return ParamDirective{}, fmt.Errorf("%s: %s%s is not a param directive", d.Pos, prefix, d.Name)
	}
	if len(d.Args) == 0 {
		return ParamDirective{}, fmt.Errorf("%s: %sparam needs a parameter name", d.Pos, prefix)
	}
	p := ParamDirective{Name: d.Args[0], Pos: d.Pos}
	for _, tok := range d.Args[1:] {
		if def, ok := strings.CutPrefix(tok, "default="); ok {
			if p.HasDefault {
				return ParamDirective{}, fmt.Errorf("%s: parameter %s has two defaults", d.Pos, p.Name)
			}
			p.Default, p.HasDefault = def, true
			continue
		}
		if p.Source != "" {
			return ParamDirective{}, fmt.Errorf("%s: parameter %s has two binding sources", d.Pos, p.Name)
		}
		name, wire, _ := strings.Cut(tok, "=")
		src, err := httprpc.ParseBindingSource(name)
		if err != nil {
			return ParamDirective{}, fmt.Errorf("%s: parameter %s: %w", d.Pos, p.Name, err)
		}
		p.Source, p.WireName = src.String(), wire
	}
	return p, nil
}

// scanned holds the directives of one comment group.
type scanned []Directive

func (s scanned) of(kind Kind) []Directive {
	var out []Directive
	for _, d := range s {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// scanner finds every directive comment in a file and tracks which of them
// were attached to a declaration.
type scanner struct {
	fset    *token.FileSet
	pending map[token.Pos]Directive
}

func newScanner(fset *token.FileSet, f *ast.File) (*scanner, error) {
	s := &scanner{fset: fset, pending: make(map[token.Pos]Directive)}
	for _, cg := range f.Comments {
		for _, c := range cg.List {
			d, ok, err := parseComment(fset, c)
			if err != nil {
				return nil, err
			}
			if ok {
				s.pending[c.Pos()] = d
			}
		}
	}
	return s, nil
}

// take returns the directives of a doc comment and marks them attached.
func (s *scanner) take(doc *ast.CommentGroup) scanned {
	if doc == nil {
		return nil
	}
	var out scanned
	for _, c := range doc.List {
		if d, ok := s.pending[c.Pos()]; ok {
			out = append(out, d)
			delete(s.pending, c.Pos())
		}
	}
	return out
}

// stray reports the first directive that was never attached.
func (s *scanner) stray() error {
	var first *Directive
	for _, d := range s.pending {
		if first == nil || d.Pos.Offset < first.Pos.Offset {
			d := d
			first = &d
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("%s: %s%s directive must document an interface or interface method", first.Pos, prefix, first.Name)
}

// Parse scans a Go package for httprpc service interfaces.
//
// The pattern follows go command semantics:
//   - "." for current directory
//   - Import path like "github.com/foo/bar"
//   - Absolute or relative directory path
func Parse(pattern string) (*Result, error) {
	return ParseDir(pattern, "")
}

// ParseDir is like Parse but allows specifying a working directory.
// If dir is empty, the current directory is used.
func ParseDir(pattern, dir string) (*Result, error) {
	return Load(pattern, Options{Dir: dir})
}

// Options configures Load.
type Options struct {
	// Dir is the working directory packages are loaded from.
	Dir string
	// RuntimePath is the import path of the httprpc runtime package, used to
	// recognize Future and Void. Defaults to the real package.
	RuntimePath string
}

// Load scans the single package matching pattern.
func Load(pattern string, opts Options) (*Result, error) {
	if opts.RuntimePath == "" {
		opts.RuntimePath = runtimePath
	}
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir: opts.Dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}

	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}

	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	for _, e := range pkg.Errors {
		// Stale generated code must not block regenerating it.
		if isGenerated(e.Pos) {
			continue
		}
		return nil, fmt.Errorf("package errors: %v", e)
	}

	result := &Result{
		PackagePath: pkg.PkgPath,
		PackageName: pkg.Name,
		Types:       pkg.Types,
	}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	c := &checker{pkg: pkg, runtime: opts.RuntimePath}
	for _, f := range pkg.Syntax {
		if isGenerated(pkg.Fset.Position(f.Pos()).Filename) {
			continue
		}
		services, err := c.file(f)
		if err != nil {
			return nil, err
		}
		result.Services = append(result.Services, services...)
	}
	return result, nil
}

// file collects the services declared in f.
func (c *checker) file(f *ast.File) ([]Service, error) {
	s, err := newScanner(c.pkg.Fset, f)
	if err != nil {
		return nil, err
	}

	var services []Service
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gd.Specs) == 1 {
				doc = gd.Doc
			}
			ds := s.take(doc)
			it, isIface := ts.Type.(*ast.InterfaceType)
			if !isIface {
				if len(ds) > 0 {
					return nil, fmt.Errorf("%s: %s%s directive must document an interface, %s is not one", ds[0].Pos, prefix, ds[0].Name, ts.Name.Name)
				}
				continue
			}
			svc, ok, err := c.service(s, ts, it, ds)
			if err != nil {
				return nil, err
			}
			if ok {
				services = append(services, svc)
			}
		}
	}
	if err := s.stray(); err != nil {
		return nil, err
	}
	return services, nil
}

// service builds the service of one interface. ok is false for interfaces
// that carry no directives at all.
func (c *checker) service(s *scanner, ts *ast.TypeSpec, it *ast.InterfaceType, ds scanned) (Service, bool, error) {
	pos := c.pkg.Fset.Position(ts.Pos())
	for _, d := range ds {
		if d.Kind != KindRoute {
			return Service{}, false, fmt.Errorf("%s: %s%s belongs on an interface method, not on interface %s", d.Pos, prefix, d.Name, ts.Name.Name)
		}
	}

	type methodDocs struct {
		field *ast.Field
		ds    scanned
	}
	var methods []methodDocs
	annotated := len(ds) > 0
	for _, field := range it.Methods.List {
		mds := s.take(field.Doc)
		if len(mds) > 0 {
			annotated = true
		}
		methods = append(methods, methodDocs{field: field, ds: mds})
	}
	if !annotated {
		return Service{}, false, nil
	}

	routes := ds.of(KindRoute)
	if len(routes) != 1 {
		return Service{}, false, fmt.Errorf("%s: interface %s must have exactly one %sroute directive, found %d", pos, ts.Name.Name, prefix, len(routes))
	}

	svc := Service{
		Name:  ts.Name.Name,
		ID:    c.pkg.PkgPath + "." + ts.Name.Name,
		Route: routes[0].Arg(),
		File:  pos.Filename,
		Pos:   pos,
	}
	for _, md := range methods {
		if len(md.field.Names) == 0 {
			return Service{}, false, fmt.Errorf("%s: interface %s embeds %s; service interfaces cannot embed other interfaces",
				c.pkg.Fset.Position(md.field.Pos()), ts.Name.Name, types.ExprString(md.field.Type))
		}
		m, err := c.method(ts, md.field, md.ds)
		if err != nil {
			return Service{}, false, err
		}
		svc.Methods = append(svc.Methods, m)
	}
	return svc, true, nil
}

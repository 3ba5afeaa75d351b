package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"
)

const runtimePath = "github.com/broady/httprpc"

// Result contains the service interfaces found in a package.
type Result struct {
	Services []Service

	// PackagePath is the import path of the parsed package.
	PackagePath string

	// PackageName is the name of the parsed package.
	PackageName string

	// Dir is the directory containing the package.
	Dir string

	// Types is the type-checked package.
	Types *types.Package
}

// Service is a validated service interface.
type Service struct {
	Name    string // interface name
	ID      string // "<import path>.<Name>"
	Route   string
	File    string // file declaring the interface
	Pos     token.Position
	Methods []Method
}

// Method is a validated interface method.
type Method struct {
	Name     string
	Verb     string // upper case HTTP method
	Template string
	// Context is the declared name of the leading context parameter.
	Context string
	Params  []Param
	// Result is the payload type, or nil when the method returns no content.
	Result types.Type
	// Async reports a *Future return.
	Async bool
	Pos   token.Position
}

// Param is a non-context method parameter.
type Param struct {
	Name       string
	Type       types.Type
	Source     string // canonical binding source, empty when inferred
	WireName   string
	Default    string
	HasDefault bool
}

// checker validates interface methods against their directives using type
// information.
type checker struct {
	pkg     *packages.Package
	runtime string
}

// method validates one interface method and its directives.
//
// Methods must have signature:
//   - func(context.Context, params...) error
//   - func(context.Context, params...) (T, error)
//   - func(context.Context, params...) *httprpc.Future[T]
func (c *checker) method(ts *ast.TypeSpec, field *ast.Field, ds scanned) (Method, error) {
	name := field.Names[0].Name
	pos := c.pkg.Fset.Position(field.Pos())
	full := ts.Name.Name + "." + name

	verbs := ds.of(KindVerb)
	if len(verbs) != 1 {
		return Method{}, fmt.Errorf("%s: method %s must have exactly one HTTP method directive, found %d", pos, full, len(verbs))
	}
	if routes := ds.of(KindRoute); len(routes) > 0 {
		return Method{}, fmt.Errorf("%s: %sroute belongs on the interface, not on method %s", routes[0].Pos, prefix, full)
	}

	fn, ok := c.pkg.TypesInfo.Defs[field.Names[0]].(*types.Func)
	if !ok {
		return Method{}, fmt.Errorf("%s: %s has no type information", pos, full)
	}
	sig := fn.Type().(*types.Signature)

	m := Method{
		Name:     name,
		Verb:     strings.ToUpper(verbs[0].Name),
		Template: verbs[0].Arg(),
		Pos:      pos,
	}

	params := sig.Params()
	if params.Len() == 0 || !isContext(params.At(0).Type()) {
		return Method{}, fmt.Errorf("%s: method %s must take context.Context as its first parameter\n  got: func(%s)",
			pos, full, formatParams(params))
	}
	if sig.Variadic() {
		return Method{}, fmt.Errorf("%s: method %s cannot be variadic", pos, full)
	}
	m.Context = params.At(0).Name()

	byName := make(map[string]int)
	for i := 1; i < params.Len(); i++ {
		v := params.At(i)
		if v.Name() == "" || v.Name() == "_" {
			return Method{}, fmt.Errorf("%s: method %s: parameter %d must be named", pos, full, i)
		}
		byName[v.Name()] = len(m.Params)
		m.Params = append(m.Params, Param{Name: v.Name(), Type: v.Type()})
	}

	seen := make(map[string]bool)
	for _, d := range ds.of(KindParam) {
		pd, err := d.Param()
		if err != nil {
			return Method{}, err
		}
		i, ok := byName[pd.Name]
		if !ok {
			return Method{}, fmt.Errorf("%s: %sparam names unknown parameter %q of method %s", pd.Pos, prefix, pd.Name, full)
		}
		if seen[pd.Name] {
			return Method{}, fmt.Errorf("%s: parameter %q of method %s has two param directives", pd.Pos, pd.Name, full)
		}
		seen[pd.Name] = true
		p := &m.Params[i]
		p.Source, p.WireName = pd.Source, pd.WireName
		p.Default, p.HasDefault = pd.Default, pd.HasDefault
	}

	if err := c.results(&m, sig.Results()); err != nil {
		return Method{}, fmt.Errorf("%s: method %s %w\n  got: (%s)", pos, full, err, formatParams(sig.Results()))
	}
	return m, nil
}

// results classifies the return shape of a method.
func (c *checker) results(m *Method, res *types.Tuple) error {
	switch res.Len() {
	case 1:
		t := res.At(0).Type()
		if isError(t) {
			return nil
		}
		if payload, ok := c.futurePayload(t); ok {
			m.Async = true
			if !c.isVoid(payload) {
				m.Result = payload
			}
			return nil
		}
	case 2:
		if isError(res.At(1).Type()) {
			m.Result = res.At(0).Type()
			return nil
		}
	}
	return fmt.Errorf("must return error, (T, error) or *httprpc.Future[T]")
}

// futurePayload returns T for *httprpc.Future[T].
func (c *checker) futurePayload(t types.Type) (types.Type, bool) {
	ptr, ok := t.(*types.Pointer)
	if !ok {
		return nil, false
	}
	named, ok := ptr.Elem().(*types.Named)
	if !ok || !c.isRuntime(named, "Future") || named.TypeArgs().Len() != 1 {
		return nil, false
	}
	return named.TypeArgs().At(0), true
}

func (c *checker) isVoid(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && c.isRuntime(named, "Void")
}

func (c *checker) isRuntime(named *types.Named, name string) bool {
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == c.runtime && obj.Name() == name
}

func isContext(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// formatParams formats a types.Tuple as a parameter list string.
func formatParams(params *types.Tuple) string {
	if params.Len() == 0 {
		return ""
	}
	var parts []string
	for i := 0; i < params.Len(); i++ {
		parts = append(parts, params.At(i).Type().String())
	}
	return strings.Join(parts, ", ")
}

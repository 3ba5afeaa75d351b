package check

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/broady/httprpc/internal/directive"
	codegen "github.com/broady/httprpc/internal/gen"
)

type Cmd struct {
	Package string `help:"Package to scan (default: current directory)." short:"p" default:"."`
	Stale   bool   `help:"Fail when generated files are missing or out of date."`
}

func (c *Cmd) Run() error {
	return c.run(os.Stdout)
}

func (c *Cmd) run(w io.Writer) error {
	result, err := directive.Parse(c.Package)
	if err != nil {
		return err
	}

	methods := 0
	for _, svc := range result.Services {
		fmt.Fprintf(w, "✓ Found service: %s (route %q)\n", svc.ID, svc.Route)
		for _, m := range svc.Methods {
			fmt.Fprintf(w, "    %s %s %s\n", m.Verb, m.Template, m.Name)
		}
		methods += len(svc.Methods)
	}
	fmt.Fprintf(w, "✓ %d services, %d methods\n", len(result.Services), methods)

	if !c.Stale {
		return nil
	}
	files, err := codegen.Files(result)
	if err != nil {
		return err
	}
	var stale []string
	for _, f := range files {
		existing, err := os.ReadFile(f.Path)
		if err != nil || !bytes.Equal(existing, f.Source) {
			stale = append(stale, filepath.Base(f.Path))
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("generated files out of date: %v (run httprpc gen)", stale)
	}
	fmt.Fprintln(w, "✓ Generated files up to date")
	return nil
}

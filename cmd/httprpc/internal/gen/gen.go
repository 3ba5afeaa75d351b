package gen

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/broady/httprpc/internal/directive"
	codegen "github.com/broady/httprpc/internal/gen"
)

type Cmd struct {
	Package string `help:"Package to scan (default: current directory)." short:"p" default:"."`
	Out     string `help:"Write all services to this single file instead of one file per source file." short:"o"`
	Stdout  bool   `help:"Print the generated code instead of writing files."`
}

func (c *Cmd) Run() error {
	return c.run(os.Stdout)
}

func (c *Cmd) run(w io.Writer) error {
	result, err := directive.Parse(c.Package)
	if err != nil {
		return err
	}
	if len(result.Services) == 0 {
		return fmt.Errorf("no //httprpc:route interfaces found in %s", result.PackagePath)
	}

	files, err := c.files(result)
	if err != nil {
		return err
	}

	for _, f := range files {
		if c.Stdout {
			if _, err := w.Write(f.Source); err != nil {
				return err
			}
			continue
		}
		if err := os.WriteFile(f.Path, f.Source, 0644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
		fmt.Fprintf(w, "✓ Wrote %s\n", relPath(f.Path))
	}
	return nil
}

func (c *Cmd) files(result *directive.Result) ([]codegen.File, error) {
	if c.Out == "" {
		return codegen.Files(result)
	}
	src, err := codegen.Render(result.PackagePath, result.PackageName, result.Services)
	if err != nil {
		return nil, err
	}
	out := c.Out
	if !filepath.IsAbs(out) {
		out = filepath.Join(result.Dir, out)
	}
	return []codegen.File{{Path: out, Source: src}}, nil
}

func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil {
		return rel
	}
	return path
}

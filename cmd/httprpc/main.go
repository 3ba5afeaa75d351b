// Command httprpc generates typed HTTP clients for annotated Go interfaces.
//
// Annotate an interface with //httprpc directives and add
//
//	//go:generate go run github.com/broady/httprpc/cmd/httprpc gen
//
// to the package. Each file declaring services gets a companion
// <file>_httprpc.go holding the service registration and a client type.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/broady/httprpc/cmd/httprpc/internal/check"
	"github.com/broady/httprpc/cmd/httprpc/internal/gen"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate service registrations and clients."`
	Check   check.Cmd  `cmd:"" help:"Validate service interfaces without writing files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("httprpc"),
		kong.Description("Code generation for typed HTTP RPC clients."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

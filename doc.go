// Package httprpc calls remote HTTP services through ordinary Go method calls.
//
// A service contract is a struct that embeds [Service] and declares its RPC
// methods as func fields. Struct tags give the route prefix, the HTTP verb and
// method template, and the names and binding hints of the parameters:
//
//	type Calculator struct {
//	    httprpc.Service `route:"/api/v1/calc"`
//
//	    Add    func(ctx context.Context, a, b int) (int, error)      `get:"add/{a}/{b}" params:"a,b"`
//	    Store  func(ctx context.Context, r Record) error             `post:"records" params:"r"`
//	    Report func(ctx context.Context, day string) *httprpc.Future[Report] `get:"report" params:"day header=X-Day"`
//	}
//
// Parameters bind to the route when their name appears as {name} in the
// template, to the JSON body when they are composite values on POST, PUT or
// PATCH, to multipart parts when they are [FormFile] values, and to the query
// string otherwise. An explicit source in the params tag overrides this.
//
// A [Factory] is built once and hands out proxies:
//
//	factory, err := httprpc.NewBuilder().
//	    AddGroup(func(g *httprpc.Group) {
//	        g.BaseAddress = "https://calc.internal"
//	        g.AddServices(httprpc.ServiceOf[Calculator]())
//	    }).
//	    Build()
//
//	calc, err := httprpc.Get[Calculator](factory)
//	sum, err := calc.Add(ctx, 1, 2)
//
// [Call] and [Client.Exec] capture a single call instead, and return the
// HTTP response together with the payload. Interfaces annotated with
// //httprpc: directives can be turned into typed clients with the httprpc
// command; the generated code registers its contract in [DefaultRegistry]
// and calls [Endpoint.Invoke].
//
// Every failure is an [*Error] whose Kind tells where the call failed.
package httprpc

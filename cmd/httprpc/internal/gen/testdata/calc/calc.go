package calc

import (
	"context"

	"github.com/broady/httprpc"
)

//httprpc:route api/v1
type Calculator interface {
	//httprpc:get add/{a}/{b}
	Add(ctx context.Context, a, b int) (int, error)

	//httprpc:post reset
	Reset(ctx context.Context) *httprpc.Future[httprpc.Void]
}

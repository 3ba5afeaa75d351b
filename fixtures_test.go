package httprpc

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type testColor int

const (
	colorRed testColor = iota
	colorGreen
	colorBlue
)

type addDTO struct {
	A int
	B int
}

type addResult struct {
	Result int
}

type person struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"gte=0"`
}

type searchFilter struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
	Tags  []string
}

type welcomeService struct {
	Service `route:"api/v1"`

	Welcome func(ctx context.Context) (string, error) `get:""`
}

type calcService struct {
	Service `route:"api/v1"`

	AddQuery  func(ctx context.Context, a, b int) (int, error)             `post:"add" params:"a,b"`
	AddRoute  func(ctx context.Context, a, b int) error                    `get:"add/{a}/{b}" params:"a,b"`
	AddJSON   func(ctx context.Context, dto addDTO) (addResult, error)     `post:"add" params:"dto"`
	AddForm   func(ctx context.Context, a, b int) error                    `get:"add" params:"a form,b form"`
	GetBool   func(ctx context.Context) (bool, error)                      `get:""`
	GetDouble func(ctx context.Context) (float64, error)                   `get:""`
	Slow      func(ctx context.Context, n int) *Future[int]                `get:"slow" params:"n"`
	Fire      func(ctx context.Context) *Future[Void]                      `post:"fire"`
	Put       func(ctx context.Context, id int, p person) error            `put:"people/{id}" params:"id,p"`
	Item      func(ctx context.Context, id uuid.UUID) (person, error)      `get:"items/{itemId}" params:"id route=itemId"`
	Absolute  func(ctx context.Context) error                              `get:"/health/"`
	Raw       func(ctx context.Context) ([]byte, error)                    `get:"raw"`
}

type uploadService struct {
	Service `route:"api/v1"`

	Upload     func(ctx context.Context, userID string, file *File) error `post:"upload" params:"userId form,file"`
	UploadMany func(ctx context.Context, files []*File) error             `post:"upload" params:"files"`
	UploadAny  func(ctx context.Context, file FormFile) error             `post:"upload-any" params:"file"`
	Meta       func(ctx context.Context, meta searchFilter) error         `post:"meta" params:"meta form"`
}

type defaultsService struct {
	Service `route:"api/v1"`

	Query func(ctx context.Context, enums []testColor, a *int, a2 *int, b *string, b2 *string) (string, error) `get:"from-query-default" params:"enums, a default=0, a2 default=null, b default=null, b2 default=text"`
}

type queryService struct {
	Service `route:"api/v1"`

	Query   func(ctx context.Context, version string, number int) (string, error)    `get:"query" params:"version,number"`
	Search  func(ctx context.Context, f searchFilter) ([]string, error)              `get:"search" params:"f"`
	Since   func(ctx context.Context, t time.Time, d time.Duration, id uuid.UUID) error `get:"since" params:"t,d,id"`
	Labels  func(ctx context.Context, m map[string]string) error                     `get:"labels" params:"m"`
	Headers func(ctx context.Context, tenant string, tags []string) error            `get:"headers" params:"tenant header=X-Tenant, tags header=X-Tag"`
	Colors  func(ctx context.Context, c []testColor, on *bool) error                 `get:"colors" params:"c,on"`
}
